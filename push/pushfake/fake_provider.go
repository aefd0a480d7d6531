package pushfake

import (
	"context"
	"sync"

	"github.com/cagkantasci/smartop/push"
)

var _ push.Provider = (*FakeProvider)(nil)

type FakeProvider struct {
	PlatformName push.Platform
	Physical     bool

	lock  sync.Mutex
	token string
	err   error
	calls int
}

func NewFakeProvider(platform push.Platform, token string) *FakeProvider {
	return &FakeProvider{PlatformName: platform, Physical: true, token: token}
}

func (p *FakeProvider) Platform() push.Platform { return p.PlatformName }

func (p *FakeProvider) IsPhysicalDevice() bool { return p.Physical }

func (p *FakeProvider) DeviceToken(context.Context) (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.calls++
	return p.token, p.err
}

// SetToken changes the token (and error) the next DeviceToken call returns.
func (p *FakeProvider) SetToken(token string, err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.token, p.err = token, err
}

func (p *FakeProvider) Calls() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.calls
}
