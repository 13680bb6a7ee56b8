// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// AeneidChainID is the chain id of the Story Aeneid testnet.
const AeneidChainID = 1315

// StoryConfig holds the chain and contract addresses used for registration.
type StoryConfig struct {
	ChainID               int64
	RegistrationWorkflows common.Address
	SPGNFTContract        common.Address
	IPAssetRegistry       common.Address
	LicensingModule       common.Address
	LicenseRegistry       common.Address
	LicenseTemplate       common.Address
	LicenseTermsID        int64
	AllowDuplicates       bool
}

// AeneidDefaults returns the protocol deployment on the Aeneid testnet with
// the public SPG collection and the non-commercial social remixing terms.
func AeneidDefaults() StoryConfig {
	return StoryConfig{
		ChainID:               AeneidChainID,
		RegistrationWorkflows: common.HexToAddress("0xbe39E1C756e921BD25DF86e7AAa31106d1eb0424"),
		SPGNFTContract:        common.HexToAddress("0xc32A8a0FF3beDDDa58393d022aF433e78739FAbc"),
		IPAssetRegistry:       common.HexToAddress("0x77319B4031e6eF1250907aa00018B8B1c67a244b"),
		LicensingModule:       common.HexToAddress("0x04fbd8a2e56dd85CFD5500A4A4DfA955B9f1dE6f"),
		LicenseRegistry:       common.HexToAddress("0x529a750E02d8E2f15649c13D69a465286a780e24"),
		LicenseTemplate:       common.HexToAddress("0x2E896b0b2Fdb7457499B56AAaA4AE55BCB4Cd316"),
		LicenseTermsID:        1,
	}
}

// Validate checks that every address needed for registration is set.
func (c StoryConfig) Validate() error {
	required := map[string]common.Address{
		"registration workflows": c.RegistrationWorkflows,
		"SPG NFT contract":       c.SPGNFTContract,
		"licensing module":       c.LicensingModule,
		"license registry":       c.LicenseRegistry,
		"license template":       c.LicenseTemplate,
	}
	for name, addr := range required {
		if addr == (common.Address{}) {
			return fmt.Errorf("ledger config: %s address is required", name)
		}
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("ledger config: chain id must be positive")
	}
	if c.LicenseTermsID <= 0 {
		return fmt.Errorf("ledger config: license terms id must be positive")
	}
	return nil
}

// Backend is the chain access the registrar needs. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return client, nil
}

// CheckNetwork verifies that backend serves chain want. Wallets call this
// "switching network"; here a mismatch is simply an error.
func CheckNetwork(ctx context.Context, backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
}, want int64) error {
	got, err := backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("query chain id: %w", err)
	}
	if got.Int64() != want {
		return fmt.Errorf("%w: rpc serves chain %s, want %d", ErrWrongNetwork, got, want)
	}
	return nil
}

// StoryRegistrar registers IP assets through the Story protocol
// registration workflows contract.
type StoryRegistrar struct {
	name      string
	cfg       StoryConfig
	backend   Backend
	signer    Signer
	workflows *bind.BoundContract
	licensing *bind.BoundContract
	registry  *bind.BoundContract
}

// NewStoryRegistrar validates cfg, confirms the backend's chain and binds
// the contracts. name labels the variant in logs and audit records.
func NewStoryRegistrar(ctx context.Context, name string, backend Backend, signer Signer, cfg StoryConfig) (*StoryRegistrar, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := CheckNetwork(ctx, backend, cfg.ChainID); err != nil {
		return nil, err
	}

	return &StoryRegistrar{
		name:      name,
		cfg:       cfg,
		backend:   backend,
		signer:    signer,
		workflows: bind.NewBoundContract(cfg.RegistrationWorkflows, workflowsABI, backend, backend, backend),
		licensing: bind.NewBoundContract(cfg.LicensingModule, licensingABI, backend, backend, backend),
		registry:  bind.NewBoundContract(cfg.LicenseRegistry, registryABI, backend, backend, backend),
	}, nil
}

// Name returns the label given at construction.
func (r *StoryRegistrar) Name() string { return r.name }

// Register mints an ownership token for the metadata document, registers
// it as an IP asset and makes sure the license terms are attached. Once the
// mint is submitted, any failure to observe its result is reported as an
// *OutcomeUnknownError.
func (r *StoryRegistrar) Register(ctx context.Context, req Request) (*Result, error) {
	opts, err := r.signer.TransactOpts(ctx, big.NewInt(r.cfg.ChainID))
	if err != nil {
		return nil, err
	}

	meta := ipMetadata{
		IpMetadataURI:   req.MetadataURI,
		IpMetadataHash:  req.Digest,
		NftMetadataURI:  req.MetadataURI,
		NftMetadataHash: req.Digest,
	}
	tx, err := r.workflows.Transact(opts, "mintAndRegisterIp",
		r.cfg.SPGNFTContract, r.signer.Address(), meta, r.cfg.AllowDuplicates)
	if err != nil {
		return nil, fmt.Errorf("submit mint: %w", err)
	}

	txHash := tx.Hash().Hex()
	slog.Info("registration submitted", "tx", txHash, "title", req.Title, "signer", r.signer.Address().Hex())
	if req.OnSubmitted != nil {
		req.OnSubmitted(txHash)
	}

	receipt, err := bind.WaitMined(ctx, r.backend, tx)
	if err != nil {
		return nil, &OutcomeUnknownError{TxHash: txHash, Err: err}
	}
	return r.complete(ctx, receipt)
}

// Reconcile resolves a mint transaction submitted earlier. It returns
// ErrPending while the transaction is not mined.
func (r *StoryRegistrar) Reconcile(ctx context.Context, txHash string) (*Result, error) {
	receipt, err := r.backend.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("reconcile %s: %w", txHash, ErrPending)
	}
	if err != nil {
		return nil, &OutcomeUnknownError{TxHash: txHash, Err: err}
	}
	return r.complete(ctx, receipt)
}

func (r *StoryRegistrar) complete(ctx context.Context, receipt *types.Receipt) (*Result, error) {
	txHash := receipt.TxHash.Hex()
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("mint %s: %w", txHash, ErrReverted)
	}

	ipID, tokenID, err := r.parseRegistration(receipt.Logs)
	if err != nil {
		return nil, fmt.Errorf("mint %s: %w", txHash, err)
	}

	// The asset exists from here on; a license failure must be reconciled
	// against the same mint rather than minting again.
	if err := r.ensureLicense(ctx, ipID); err != nil {
		return nil, &OutcomeUnknownError{TxHash: txHash, Err: err}
	}

	return &Result{
		AssetID:        ipID.Hex(),
		TokenID:        tokenID.String(),
		LicenseTermsID: strconv.FormatInt(r.cfg.LicenseTermsID, 10),
		TxHash:         txHash,
		ChainID:        r.cfg.ChainID,
	}, nil
}

// parseRegistration finds the IPRegistered event emitted for our SPG
// collection and returns the asset and token ids.
func (r *StoryRegistrar) parseRegistration(logs []*types.Log) (common.Address, *big.Int, error) {
	return parseIPRegistered(logs, r.cfg.IPAssetRegistry, r.cfg.SPGNFTContract)
}

func parseIPRegistered(logs []*types.Log, registry, tokenContract common.Address) (common.Address, *big.Int, error) {
	event := assetRegistryABI.Events["IPRegistered"]
	for _, lg := range logs {
		if len(lg.Topics) != 4 || lg.Topics[0] != event.ID {
			continue
		}
		if registry != (common.Address{}) && lg.Address != registry {
			continue
		}
		if common.BytesToAddress(lg.Topics[2].Bytes()) != tokenContract {
			continue
		}

		fields := map[string]any{}
		if err := assetRegistryABI.UnpackIntoMap(fields, "IPRegistered", lg.Data); err != nil {
			return common.Address{}, nil, fmt.Errorf("decode IPRegistered: %w", err)
		}
		ipID, ok := fields["ipId"].(common.Address)
		if !ok {
			return common.Address{}, nil, fmt.Errorf("decode IPRegistered: missing ipId")
		}
		return ipID, new(big.Int).SetBytes(lg.Topics[3].Bytes()), nil
	}
	return common.Address{}, nil, errors.New("no IPRegistered event in receipt")
}

// ensureLicense attaches the configured terms unless the asset already
// carries them (default terms are attached implicitly).
func (r *StoryRegistrar) ensureLicense(ctx context.Context, ipID common.Address) error {
	termsID := big.NewInt(r.cfg.LicenseTermsID)

	var out []any
	err := r.registry.Call(&bind.CallOpts{Context: ctx}, &out, "hasIpAttachedLicenseTerms",
		ipID, r.cfg.LicenseTemplate, termsID)
	if err != nil {
		return fmt.Errorf("check license terms: %w", err)
	}
	if len(out) == 1 {
		if attached, ok := out[0].(bool); ok && attached {
			return nil
		}
	}

	opts, err := r.signer.TransactOpts(ctx, big.NewInt(r.cfg.ChainID))
	if err != nil {
		return err
	}
	tx, err := r.licensing.Transact(opts, "attachLicenseTerms", ipID, r.cfg.LicenseTemplate, termsID)
	if err != nil {
		return fmt.Errorf("submit attach license: %w", err)
	}
	receipt, err := bind.WaitMined(ctx, r.backend, tx)
	if err != nil {
		return fmt.Errorf("wait attach license %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("attach license %s: %w", tx.Hash().Hex(), ErrReverted)
	}
	slog.Info("license terms attached", "ip_id", ipID.Hex(), "terms", termsID)
	return nil
}
