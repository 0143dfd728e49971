package store

// Profile names a deployment profile (lite vs standard), mirroring the
// teacher's config.Profile. Nothing in this module reads it; backend
// selection goes through config's DeploymentProfile and storeset.Build.
type Profile string

const (
	ProfileLite     Profile = "lite"
	ProfileStandard Profile = "standard"
)
