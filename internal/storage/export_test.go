package storage

// WithClient exposes withClient for testing.
var WithClient = withClient

// ObjectPutter exposes objectPutter for testing.
type ObjectPutter = objectPutter
