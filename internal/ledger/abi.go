// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABI fragments of the Story protocol contracts the registrar uses.
const (
	registrationWorkflowsABI = `[{
		"type": "function", "name": "mintAndRegisterIp", "stateMutability": "nonpayable",
		"inputs": [
			{"name": "spgNftContract", "type": "address"},
			{"name": "recipient", "type": "address"},
			{"name": "ipMetadata", "type": "tuple", "components": [
				{"name": "ipMetadataURI", "type": "string"},
				{"name": "ipMetadataHash", "type": "bytes32"},
				{"name": "nftMetadataURI", "type": "string"},
				{"name": "nftMetadataHash", "type": "bytes32"}
			]},
			{"name": "allowDuplicates", "type": "bool"}
		],
		"outputs": [
			{"name": "ipId", "type": "address"},
			{"name": "tokenId", "type": "uint256"}
		]
	}]`

	ipAssetRegistryABI = `[{
		"type": "event", "name": "IPRegistered", "anonymous": false,
		"inputs": [
			{"name": "ipId", "type": "address", "indexed": false},
			{"name": "chainId", "type": "uint256", "indexed": true},
			{"name": "tokenContract", "type": "address", "indexed": true},
			{"name": "tokenId", "type": "uint256", "indexed": true},
			{"name": "name", "type": "string", "indexed": false},
			{"name": "uri", "type": "string", "indexed": false},
			{"name": "registrationDate", "type": "uint256", "indexed": false}
		]
	}]`

	licensingModuleABI = `[{
		"type": "function", "name": "attachLicenseTerms", "stateMutability": "nonpayable",
		"inputs": [
			{"name": "ipId", "type": "address"},
			{"name": "licenseTemplate", "type": "address"},
			{"name": "licenseTermsId", "type": "uint256"}
		],
		"outputs": []
	}]`

	licenseRegistryABI = `[{
		"type": "function", "name": "hasIpAttachedLicenseTerms", "stateMutability": "view",
		"inputs": [
			{"name": "ipId", "type": "address"},
			{"name": "licenseTemplate", "type": "address"},
			{"name": "licenseTermsId", "type": "uint256"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	}]`
)

var (
	workflowsABI     = mustParseABI(registrationWorkflowsABI)
	assetRegistryABI = mustParseABI(ipAssetRegistryABI)
	licensingABI     = mustParseABI(licensingModuleABI)
	registryABI      = mustParseABI(licenseRegistryABI)
)

// ipMetadata mirrors the WorkflowStructs.IPMetadata tuple.
type ipMetadata struct {
	IpMetadataURI   string
	IpMetadataHash  [32]byte
	NftMetadataURI  string
	NftMetadataHash [32]byte
}

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("ledger: bad ABI: " + err.Error())
	}
	return parsed
}
