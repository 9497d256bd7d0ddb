// Package config loads and saves the server configuration file; its
// accessors supply defaults for options left unset.
package config
