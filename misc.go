package main

// Prefix is a prefix used for environment variables containing gateway
// configuration.
const Prefix = "UPLOAD_GW"

var (
	// Version is gateway version.
	Version = "dev"
)
