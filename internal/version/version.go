package version

// Version is the current version of diskclean.
// This MUST be incremented for each build that includes changes.
// Use semantic versioning: MAJOR.MINOR.PATCH
// Changing the steps of a hardware manager also requires bumping that
// manager's own version, which is recorded with every run.
const Version = "0.4.0"
