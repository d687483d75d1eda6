package config

import "errors"

var (
	ErrFileDoesNotExist  = errors.New("config file does not exist")
	ErrReadConfigFail    = errors.New("reading config file failed")
	ErrConfigParsingFail = errors.New("parsing config file failed")
	ErrInvalidConfig     = errors.New("invalid config file")
)
