package push

import "context"

// Platform identifies the push transport the device token belongs to.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// Provider is the platform push API.
type Provider interface {
	Platform() Platform
	// IsPhysicalDevice is false on simulators and emulators, which cannot receive pushes.
	IsPhysicalDevice() bool
	// DeviceToken asks for notification permission if needed and returns the device push token.
	DeviceToken(ctx context.Context) (string, error)
}

// Supported reports whether p can receive push notifications at all.
func Supported(p Provider) bool {
	return p != nil && p.IsPhysicalDevice() && p.Platform() != PlatformWeb
}
