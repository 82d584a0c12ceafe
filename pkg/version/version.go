package version

// Version is the current version of the ktl binary.
const Version = "1.0.0"
