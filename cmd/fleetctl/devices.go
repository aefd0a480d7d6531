package main

import (
	"context"
	"os"

	"github.com/cagkantasci/smartop/push"
)

const (
	envPushToken    = "FLEET_PUSH_TOKEN"
	envPushPlatform = "FLEET_PUSH_PLATFORM"
)

// envProvider stands in for the platform push API on a workstation: the
// device token and platform come from the environment.
type envProvider struct {
	platform push.Platform
}

func newEnvProvider() *envProvider {
	platform := push.Platform(os.Getenv(envPushPlatform))
	if platform == "" {
		platform = push.PlatformAndroid
	}
	return &envProvider{platform: platform}
}

func (p *envProvider) Platform() push.Platform { return p.platform }

func (p *envProvider) IsPhysicalDevice() bool { return true }

func (p *envProvider) DeviceToken(context.Context) (string, error) {
	return os.Getenv(envPushToken), nil
}
