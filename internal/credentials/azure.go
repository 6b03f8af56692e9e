// Package credentials provides bearer token sources for request authentication.
package credentials

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// refreshSkew renews cached tokens this long before they expire.
const refreshSkew = time.Minute

// Azure issues tokens from an azcore.TokenCredential, caching them per scope
// set. The zero value lazily uses DefaultAzureCredential.
type Azure struct {
	mu    sync.Mutex
	cred  azcore.TokenCredential
	cache map[string]azcore.AccessToken
	now   func() time.Time
}

// NewAzure returns a provider backed by cred. A nil cred selects
// DefaultAzureCredential on first use.
func NewAzure(cred azcore.TokenCredential) *Azure {
	return &Azure{cred: cred}
}

// Token returns a bearer token for scopes.
func (a *Azure) Token(ctx context.Context, scopes []string) (string, error) {
	if len(scopes) == 0 {
		return "", fmt.Errorf("azure credentials: no scopes")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cred == nil {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return "", fmt.Errorf("azure credentials: %w", err)
		}
		a.cred = cred
	}
	if a.cache == nil {
		a.cache = map[string]azcore.AccessToken{}
	}
	now := time.Now
	if a.now != nil {
		now = a.now
	}

	key := cacheKey(scopes)
	if tok, ok := a.cache[key]; ok && now().Add(refreshSkew).Before(tok.ExpiresOn) {
		return tok.Token, nil
	}
	tok, err := a.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: scopes})
	if err != nil {
		return "", fmt.Errorf("azure credentials: %w", err)
	}
	a.cache[key] = tok
	return tok.Token, nil
}

func cacheKey(scopes []string) string {
	s := slices.Clone(scopes)
	slices.Sort(s)
	return strings.Join(s, " ")
}
