package apitransport

import "net/http"

// Credential is what a CredentialIssuer hands back: an auth scheme
// ("Bearer", "token", ...) and the secret value to place after it.
type Credential struct {
	Kind   string
	Secret string
}

// CredentialIssuer is consulted lazily, once per outgoing request, so
// that short-lived tokens (OAuth access tokens, refreshed PATs) are
// never cached stale inside a long-running client.
type CredentialIssuer interface {
	Issue() (Credential, error)
}

// StaticCredential issues the same credential on every call; useful
// for personal access tokens that don't rotate within a process
// lifetime.
type StaticCredential Credential

func (s StaticCredential) Issue() (Credential, error) { return Credential(s), nil }

// AuthInterceptor sets the Authorization header on every outgoing
// request from a freshly issued credential.
type AuthInterceptor struct {
	Issuer CredentialIssuer
}

func (a *AuthInterceptor) Intercept(req *http.Request) error {
	cred, err := a.Issuer.Issue()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", cred.Kind+" "+cred.Secret)
	return nil
}
