package utils

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrInvalidRTMPURL = errors.New("invalid rtmp url")
	ErrMissingRTMPKey = errors.New("failed to parse RTMP key")
)

// ParseRTMPKey takes the complete RTMP url and extracts the streaming key
func ParseRTMPKey(rtmpURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rtmpURL))
	if err != nil {
		return "", ErrInvalidRTMPURL
	}
	if u.Scheme != "rtmp" && u.Scheme != "rtmps" {
		return "", ErrInvalidRTMPURL
	}
	if u.Host == "" {
		return "", ErrInvalidRTMPURL
	}
	// app name followed by the stream key, e.g. /live2/<key>
	splitted := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(splitted) < 2 {
		return "", ErrMissingRTMPKey
	}
	key := splitted[len(splitted)-1]
	if key == "" {
		return "", ErrMissingRTMPKey
	}
	return key, nil
}

// MaskRTMPKey hides the streaming key for logging, unparsable urls are masked completely
func MaskRTMPKey(rtmpURL string) string {
	key, err := ParseRTMPKey(rtmpURL)
	if err != nil {
		return "***"
	}
	trimmed := strings.TrimRight(strings.TrimSpace(rtmpURL), "/")
	return strings.TrimSuffix(trimmed, key) + "***"
}
