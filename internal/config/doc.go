// Package config defines the webnoise configuration model and its loaders.
//
// Configuration is assembled from three layers: built-in defaults, an
// optional YAML file, and WEBNOISE_* environment variables. CLI flags are
// applied on top by the cmd package. The resulting Config is validated once
// before a run starts and treated as read-only afterwards.
package config
