package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proofpress/internal/client"
	"proofpress/internal/ipfs"
	"proofpress/internal/ledger"
	"proofpress/internal/models"
	"proofpress/internal/poller"
	"proofpress/internal/publish"
)

type fakeAPI struct {
	mu        sync.Mutex
	hash      string
	gets      int
	created   []publish.CreateInput
	attached  []publish.RegistrationInput
	principal string
}

func (f *fakeAPI) article(id uuid.UUID) *client.Article {
	a := &client.Article{Article: models.Article{
		ID: id, Title: "Field Notes", Slug: "field-notes", Status: models.ArticleStatusPublished,
	}}
	if f.hash != "" {
		h := f.hash
		a.ContentHash = &h
	}
	a.State = publish.StateOf(&a.Article)
	return a
}

func (f *fakeAPI) CreateArticle(_ context.Context, in publish.CreateInput) (*client.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	a := f.article(uuid.New())
	a.Title = in.Title
	a.Content = in.Content
	return a, nil
}

func (f *fakeAPI) GetArticle(_ context.Context, id uuid.UUID) (*client.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	return f.article(id), nil
}

func (f *fakeAPI) AttachRegistration(_ context.Context, id uuid.UUID, in publish.RegistrationInput) (*client.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, in)
	a := f.article(id)
	a.LedgerAssetID, a.LedgerTokenID, a.LicenseTermsID, a.TxHash = &in.AssetID, &in.TokenID, &in.LicenseTermsID, &in.TxHash
	a.State = publish.StateOf(&a.Article)
	return a, nil
}

type staticDocs struct{}

func (staticDocs) Fetch(context.Context, string) ([]byte, error) {
	return []byte(`{"title":"Field Notes"}`), nil
}

type okRegistrar struct{ calls int }

func (r *okRegistrar) Name() string { return "user" }

func (r *okRegistrar) Register(context.Context, ledger.Request) (*ledger.Result, error) {
	r.calls++
	return &ledger.Result{AssetID: "0x00000000000000000000000000000000000000a1", TokenID: "9", LicenseTermsID: "1", TxHash: "0xbeef"}, nil
}

func testDeps(api *fakeAPI, reg ledger.Registrar) Deps {
	return Deps{
		API: func(cfg *Config) poller.API {
			api.principal = cfg.Principal
			return api
		},
		Documents: func(*Config) ipfs.Fetcher { return staticDocs{} },
		Registrar: func(context.Context, *Config) (ledger.Registrar, error) {
			if reg == nil {
				return nil, errors.New("registrar should not be built")
			}
			return reg, nil
		},
	}
}

func run(t *testing.T, deps Deps, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(deps)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := run(t, testDeps(&fakeAPI{}, nil), "--help")
	require.NoError(t, err)
	for _, name := range []string{"publish", "register", "status"} {
		assert.Contains(t, out, name)
	}
}

func TestStatus(t *testing.T) {
	api := &fakeAPI{hash: "bafkreistatus"}
	id := uuid.New()

	out, err := run(t, testDeps(api, nil), "status", id.String(), "--principal", "did:privy:alice")
	require.NoError(t, err)
	assert.Contains(t, out, id.String())
	assert.Contains(t, out, "REGISTRATION_PENDING")
	assert.Contains(t, out, "bafkreistatus")
	assert.Equal(t, "did:privy:alice", api.principal)
}

func TestStatusJSON(t *testing.T) {
	out, err := run(t, testDeps(&fakeAPI{}, nil), "status", uuid.NewString(), "--json")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "UPLOAD_PENDING", decoded["state"])
}

func TestStatusInvalidID(t *testing.T) {
	_, err := run(t, testDeps(&fakeAPI{}, nil), "status", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid article id")
}

func TestRegister(t *testing.T) {
	api := &fakeAPI{hash: "bafkreireg"}
	reg := &okRegistrar{}

	out, err := run(t, testDeps(api, reg), "register", uuid.NewString(), "--interval", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "REGISTERED")
	assert.Equal(t, 1, reg.calls)
	require.Len(t, api.attached, 1)
	assert.Equal(t, "bafkreireg", api.attached[0].ContentHash)
	assert.Equal(t, int64(ledger.AeneidChainID), api.attached[0].ChainID)
}

func TestRegisterTimeout(t *testing.T) {
	api := &fakeAPI{}
	reg := &okRegistrar{}

	_, err := run(t, testDeps(api, reg), "register", uuid.NewString(), "--attempts", "3", "--interval", "1ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), poller.SlowRegistrationMessage)
	assert.Equal(t, 3, api.gets)
	assert.Zero(t, reg.calls)
}

func TestPublishNoRegister(t *testing.T) {
	api := &fakeAPI{}
	path := filepath.Join(t.TempDir(), "notes.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>Body</p>"), 0o600))

	out, err := run(t, testDeps(api, nil), "publish", "--title", "Field Notes", "--content-file", path, "--no-register")
	require.NoError(t, err)
	assert.Contains(t, out, "UPLOAD_PENDING")
	require.Len(t, api.created, 1)
	assert.Equal(t, "<p>Body</p>", api.created[0].Content)
	assert.Equal(t, models.ArticleStatusPublished, api.created[0].Status)
}

func TestPublishAndRegister(t *testing.T) {
	api := &fakeAPI{hash: "bafkreipub"}
	reg := &okRegistrar{}

	out, err := run(t, testDeps(api, reg), "publish", "--title", "Field Notes", "--content", "<p>x</p>", "--interval", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "REGISTERED")
	assert.Len(t, api.created, 1)
	assert.Len(t, api.attached, 1)
}

func TestPublishRequiresTitle(t *testing.T) {
	api := &fakeAPI{}
	_, err := run(t, testDeps(api, nil), "publish", "--content", "x", "--no-register")
	require.Error(t, err)
	assert.Empty(t, api.created)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proofctl.yaml")
	yaml := "server: http://api.example.com\nattempts: 5\ninterval: 2s\nledger:\n  chain_id: 1514\n  keystore: /keys/author.json\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("PROOFCTL_PRINCIPAL", "did:privy:bob")
	t.Setenv("PROOFCTL_LEDGER_KEYSTORE_PASSWORD", "secret")

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com", cfg.Server)
	assert.Equal(t, 5, cfg.Attempts)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, "did:privy:bob", cfg.Principal)
	assert.Equal(t, int64(1514), cfg.Ledger.ChainID)
	assert.Equal(t, "/keys/author.json", cfg.Ledger.Keystore)
	assert.Equal(t, "secret", cfg.Ledger.KeystorePassword)
	assert.Equal(t, ledger.AeneidDefaults().SPGNFTContract.Hex(), cfg.Ledger.SPGNFTContract)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, poller.DefaultAttempts, cfg.Attempts)
	assert.Equal(t, poller.DefaultInterval, cfg.Interval)

	sc, err := cfg.Ledger.StoryConfig()
	require.NoError(t, err)
	assert.Equal(t, ledger.AeneidDefaults(), sc)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("attempts: 0\n"), 0o600))

	_, err := LoadConfig(viper.New(), path)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "attempts"))
}

func TestLedgerStoryConfigBadAddress(t *testing.T) {
	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)
	cfg.Ledger.LicensingModule = "0xnope"

	_, err = cfg.Ledger.StoryConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger.licensing_module")
}
