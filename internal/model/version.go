package model

// Version constants for the application and its wire documents.
const (
	// AppName is the authoring-system tag stamped on published origins.
	AppName = "scoctoloc"

	// Version is the scoctoloc version.
	Version = "0.3.0"

	// DocumentVersion is the version of the event parameter document format.
	DocumentVersion = "1"
)
