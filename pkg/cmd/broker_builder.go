package cmd

import (
	"errors"

	"github.com/kubedeck/kubedeck/pkg/broker"
	"github.com/kubedeck/kubedeck/pkg/identity"
)

// buildBroker assembles the full stack from the loaded config: OIDC
// provider, token cache, credential factory, record store, broker.
func buildBroker(rt *runtimeState) (*broker.Broker, error) {
	if rt.cfg == nil {
		return nil, errors.New("config not loaded")
	}
	secret, err := rt.cfg.ResolveClientSecret()
	if err != nil {
		return nil, err
	}
	provider, err := identity.NewProvider(identity.ProviderConfig{
		Authority:       rt.cfg.OIDC.Authority,
		ClientID:        rt.cfg.OIDC.ClientID,
		ClientSecret:    secret,
		GrantType:       rt.cfg.OIDC.GrantType,
		CAFile:          rt.cfg.OIDC.CAFile,
		InsecureSkipTLS: rt.cfg.OIDC.InsecureSkipTLS,
		ExtraAuthParams: rt.cfg.OIDC.ExtraAuthParams,
	}, rt.log)
	if err != nil {
		return nil, err
	}
	cache, err := identity.NewTokenCache(rt.cfg.Storage.TokenStorage, rt.cfg.TokenCachePath(), "")
	if err != nil {
		return nil, err
	}
	return broker.New(broker.Options{
		Store:            &broker.RecordStore{Path: rt.cfg.RecordPath()},
		Factory:          identity.NewFactory(provider, cache, rt.log),
		StatusScopes:     rt.cfg.StatusScopes(),
		ManagementScopes: rt.cfg.Scopes.Management,
		Log:              rt.log,
	})
}
