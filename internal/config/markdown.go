package config

import "regexp"

const (
	RendererMmark   = "mmark"
	RendererClassic = "classic"
)

var (
	RegexCallout = regexp.MustCompile(`//\s*<<(\d+)>>`)
)
