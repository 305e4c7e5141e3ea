// Package tokenstore handles persisting the OAuth credential pair. It is a
// leaf package with two backends behind one interface: a local JSON file
// for workstation use and AWS Secrets Manager for managed deployments.
package tokenstore

import "context"

// Credential is the persisted OAuth2 token pair. The two fields are always
// written together; a half-updated pair would mix a new access token with
// a stale refresh token and brick the next rotation.
type Credential struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Store loads and saves the credential pair. Load returns (nil, nil) when
// no credential has been stored yet (first run, before login). Save must
// create the underlying record when it does not exist.
type Store interface {
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
}
