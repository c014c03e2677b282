package registration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	cache "github.com/campusapp/schedule-cache"
	"github.com/campusapp/schedule-cache/credential"
)

// Device describes this installation to the push backend.
type Device struct {
	Identity string `json:"identity"`
	Token    string `json:"deviceToken"`
	Platform string `json:"platform"`
	Name     string `json:"deviceName"`
}

// Result is what the server answers to a registration.
type Result struct {
	DeviceID     string    `json:"deviceId"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Notification is the server's answer to a test notification request.
type Notification struct {
	Delivered bool   `json:"delivered"`
	MessageID string `json:"messageId,omitempty"`
}

// DeviceAPI is the remote side of device registration.
type DeviceAPI interface {
	RegisterDevice(ctx context.Context, d Device) (Result, error)
	SendTestNotification(ctx context.Context) (Notification, error)
}

// ErrNoDeviceToken is returned when the push transport has not produced a token yet.
var ErrNoDeviceToken = errors.New("registration: no device token")

/*
DeviceRegistrar owns the "register this device for the signed-in user" side effect.

The UI only signals that a credential became available (or went away). Any number of
screens may signal at once; the Guard makes sure one registration call per identity
is in flight and that a completed one is not repeated.
*/
type DeviceRegistrar struct {
	guard    *Guard
	api      DeviceAPI
	gate     credential.Gate
	token    func(ctx context.Context) (string, error)
	platform string
	name     string
	logger   *slog.Logger
}

// RegistrarOptions configures a DeviceRegistrar.
type RegistrarOptions struct {
	Guard *Guard // shared guard; a new one when nil
	API   DeviceAPI
	Gate  credential.Gate

	// DeviceToken returns the push token of this installation.
	DeviceToken func(ctx context.Context) (string, error)

	Platform   string
	DeviceName string
	Logger     *slog.Logger
}

// NewDeviceRegistrar creates a DeviceRegistrar.
func NewDeviceRegistrar(o RegistrarOptions) *DeviceRegistrar {
	if o.Guard == nil {
		o.Guard = NewGuard()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &DeviceRegistrar{
		guard:    o.Guard,
		api:      o.API,
		gate:     o.Gate,
		token:    o.DeviceToken,
		platform: o.Platform,
		name:     o.DeviceName,
		logger:   o.Logger,
	}
}

/*
CredentialAvailable registers the device for the current credential's identity.

Without a usable credential it fails with ErrAuthRequired and registers nothing.
Calls for an identity that is already registered return StatusAlreadyRegistered
without touching the network.
*/
func (r *DeviceRegistrar) CredentialAvailable(ctx context.Context) (Outcome, error) {
	cred, ok := r.gate.CurrentCredential(ctx)
	if !ok || cred.Identity == "" {
		return Outcome{}, authRequired(cred.Identity)
	}

	out, err := r.guard.Acquire(ctx, cred.Identity, func(ctx context.Context) (Result, error) {
		token, err := r.token(ctx)
		if err != nil {
			return Result{}, err
		}
		if token == "" {
			return Result{}, ErrNoDeviceToken
		}
		return r.api.RegisterDevice(ctx, Device{
			Identity: cred.Identity,
			Token:    token,
			Platform: r.platform,
			Name:     r.name,
		})
	})
	if err != nil {
		r.logger.Warn("device registration failed", "identity", cred.Identity, "error", err)
		if errors.Is(err, cache.ErrCredentialRejected) {
			err = cache.NewError(cache.KindSessionExpired, "register", cred.Identity, err)
		}
		return out, err
	}
	if out.Status == StatusRegistered {
		r.logger.Info("device registered", "identity", cred.Identity, "device", out.Result.DeviceID)
	}
	return out, nil
}

// Logout forgets the registration of identity so the next login registers again.
func (r *DeviceRegistrar) Logout(identity string) {
	r.guard.Reset(identity)
}

// SendTestNotification asks the backend to push a test message to this device.
func (r *DeviceRegistrar) SendTestNotification(ctx context.Context) (Notification, error) {
	if !r.gate.HasValidCredential(ctx) {
		return Notification{}, authRequired("")
	}
	n, err := r.api.SendTestNotification(ctx)
	if errors.Is(err, cache.ErrCredentialRejected) {
		return n, cache.NewError(cache.KindSessionExpired, "test-notification", "", err)
	}
	return n, err
}
