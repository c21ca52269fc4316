// Package sync implements the offline-first synchronization engine.
package sync

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sahelpos/terminal/internal/db"
	apperrors "github.com/sahelpos/terminal/internal/errors"
	"github.com/sahelpos/terminal/internal/ident"
	"github.com/sahelpos/terminal/internal/logging"
)

// Credentials identify this terminal to the central server. The key is
// opaque to the engine: how it was obtained is someone else's problem.
type Credentials struct {
	Key      string
	DeviceID string
}

// CredentialProvider supplies the credentials attached to every sync
// request. It is a capability: the engine has no knowledge of where
// credentials are persisted.
type CredentialProvider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticProvider returns fixed credentials, used by tests and by setups
// where both values come from the config file.
type StaticProvider struct {
	Creds Credentials
}

// Credentials implements CredentialProvider.
func (p *StaticProvider) Credentials(ctx context.Context) (Credentials, error) {
	if p.Creds.Key == "" {
		return Credentials{}, apperrors.New(apperrors.ErrCredentialsMissing, "no credential key configured")
	}
	return p.Creds, nil
}

// StoreProvider reads the credential key from configuration and the
// device id from the parameters table, provisioning a fresh id on first
// use so every terminal is distinguishable from day one.
type StoreProvider struct {
	Store *db.Store
	Key   string
}

// Credentials implements CredentialProvider.
func (p *StoreProvider) Credentials(ctx context.Context) (Credentials, error) {
	if p.Key == "" {
		return Credentials{}, apperrors.New(apperrors.ErrCredentialsMissing, "no credential key configured")
	}

	deviceID, err := p.Store.GetParameter(db.ParamDeviceID, "")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, apperrors.Wrap(apperrors.ErrDatabase, "failed to read device id", err)
	}

	if deviceID == "" {
		deviceID = ident.NewDeviceID()
		if err := p.Store.SetParameter(db.ParamDeviceID, deviceID); err != nil {
			return Credentials{}, apperrors.Wrap(apperrors.ErrDatabase, "failed to persist device id", err)
		}
		logging.Info("Provisioned device id",
			map[string]interface{}{"device_id": deviceID})
	}

	return Credentials{Key: p.Key, DeviceID: deviceID}, nil
}
