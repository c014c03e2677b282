package registration_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	cache "github.com/campusapp/schedule-cache"
	"github.com/campusapp/schedule-cache/credential"
	"github.com/campusapp/schedule-cache/registration"
)

type fakeDeviceAPI struct {
	mu      sync.Mutex
	devices []registration.Device
	err     error
	pushes  int
}

func (f *fakeDeviceAPI) RegisterDevice(_ context.Context, d registration.Device) (registration.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return registration.Result{}, f.err
	}
	f.devices = append(f.devices, d)
	return registration.Result{DeviceID: fmt.Sprintf("dev-%d", len(f.devices))}, nil
}

func (f *fakeDeviceAPI) SendTestNotification(context.Context) (registration.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return registration.Notification{}, f.err
	}
	f.pushes++
	return registration.Notification{Delivered: true, MessageID: "m-1"}, nil
}

func newRegistrar(api registration.DeviceAPI, gate credential.Gate, token string) *registration.DeviceRegistrar {
	return registration.NewDeviceRegistrar(registration.RegistrarOptions{
		API:  api,
		Gate: gate,
		DeviceToken: func(context.Context) (string, error) {
			return token, nil
		},
		Platform:   "android",
		DeviceName: "Pixel 8",
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestRegistrar_RequiresCredential(t *testing.T) {
	api := &fakeDeviceAPI{}
	r := newRegistrar(api, credential.NewMemoryGate(nil), "tok")

	_, err := r.CredentialAvailable(context.Background())
	if !errors.Is(err, cache.ErrAuthRequired) {
		t.Fatalf("err = %v, want ErrAuthRequired", err)
	}
	if len(api.devices) != 0 {
		t.Fatal("nothing should be registered without a credential")
	}
	if _, err := r.SendTestNotification(context.Background()); !errors.Is(err, cache.ErrAuthRequired) {
		t.Fatalf("test notification err = %v", err)
	}
}

func TestRegistrar_RegistersOncePerIdentity(t *testing.T) {
	api := &fakeDeviceAPI{}
	gate := credential.NewMemoryGate(nil)
	gate.Set(credential.Credential{Token: "t", Identity: "user-1"})
	r := newRegistrar(api, gate, "push-token")
	ctx := context.Background()

	out, err := r.CredentialAvailable(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != registration.StatusRegistered || out.Result.DeviceID != "dev-1" {
		t.Fatalf("out = %+v", out)
	}
	want := registration.Device{Identity: "user-1", Token: "push-token", Platform: "android", Name: "Pixel 8"}
	if api.devices[0] != want {
		t.Fatalf("device = %+v, want %+v", api.devices[0], want)
	}

	if out, _ := r.CredentialAvailable(ctx); out.Status != registration.StatusAlreadyRegistered {
		t.Fatalf("second call status = %v", out.Status)
	}

	r.Logout("user-1")
	if _, err := r.CredentialAvailable(ctx); err != nil {
		t.Fatal(err)
	}
	if len(api.devices) != 2 {
		t.Fatalf("registrations = %d, want 2 after logout", len(api.devices))
	}
}

func TestRegistrar_MissingDeviceToken(t *testing.T) {
	gate := credential.NewMemoryGate(nil)
	gate.Set(credential.Credential{Token: "t", Identity: "user-1"})
	r := newRegistrar(&fakeDeviceAPI{}, gate, "")

	if _, err := r.CredentialAvailable(context.Background()); !errors.Is(err, registration.ErrNoDeviceToken) {
		t.Fatalf("err = %v, want ErrNoDeviceToken", err)
	}
}

func TestRegistrar_RejectedCredentialIsSessionExpired(t *testing.T) {
	api := &fakeDeviceAPI{err: fmt.Errorf("register: %w", cache.ErrCredentialRejected)}
	gate := credential.NewMemoryGate(nil)
	gate.Set(credential.Credential{Token: "t", Identity: "user-1"})
	r := newRegistrar(api, gate, "push-token")

	_, err := r.CredentialAvailable(context.Background())
	if !errors.Is(err, cache.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if cache.KindOf(err) != cache.KindSessionExpired {
		t.Fatalf("kind = %v", cache.KindOf(err))
	}

	if _, err := r.SendTestNotification(context.Background()); !errors.Is(err, cache.ErrSessionExpired) {
		t.Fatalf("test notification err = %v", err)
	}
}

func TestRegistrar_SendTestNotification(t *testing.T) {
	api := &fakeDeviceAPI{}
	gate := credential.NewMemoryGate(nil)
	gate.Set(credential.Credential{Token: "t", Identity: "user-1"})
	r := newRegistrar(api, gate, "push-token")

	n, err := r.SendTestNotification(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !n.Delivered || api.pushes != 1 {
		t.Fatalf("notification = %+v pushes = %d", n, api.pushes)
	}
}
