package version

// Current is the application version, set with -ldflags at release time.
var Current = "dev"

const AppName = "levelgraph"
