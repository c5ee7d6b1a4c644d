package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"judge-backend/cmd"
	"judge-backend/internal/crypto"
	"judge-backend/internal/inft"
	"judge-backend/internal/storage"
	"judge-backend/pkg/api"

	"github.com/caarlos0/env/v11"
)

// Prepares everything a registry operator needs to mint a judge token:
// encrypts a starter judge profile, uploads the ciphertext to the storage
// network, and prints the encrypted URI and metadata hash to pass to the
// contract's mint call.

type MintConfig struct {
	IndexerRPCURL  string `env:"INDEXER_RPC_URL,notEmpty,required"`
	MetadataSymKey string `env:"METADATA_SYM_KEY_BASE64"`
}

func demoProfile() api.JudgeProfile {
	return api.JudgeProfile{
		Version: "1",
		Rubric: []api.RubricCriterion{
			{Criterion: "Innovation", Weight: 0.3, Description: "Novelty of the idea and approach"},
			{Criterion: "Technical Execution", Weight: 0.3, Description: "Quality and completeness of the build"},
			{Criterion: "Impact", Weight: 0.2, Description: "Potential real-world value"},
			{Criterion: "Presentation", Weight: 0.2, Description: "Clarity of the demo and writeup"},
		},
		Prompts: api.JudgePrompts{
			System: "You are an impartial hackathon judge. Score the submission against the rubric only.",
		},
		ModelHint: "gpt-oss-120b",
	}
}

func main() {
	cmd.LoadEnvFile()

	var cfg MintConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	key := cfg.MetadataSymKey
	if key == "" {
		var err error
		key, err = crypto.NewKey()
		if err != nil {
			log.Fatalf("error generating metadata key: %v", err)
		}
		log.Printf("METADATA_SYM_KEY_BASE64 not set, generated a fresh key")
	}

	plaintext, err := json.Marshal(demoProfile())
	if err != nil {
		log.Fatalf("error serializing judge profile: %v", err)
	}

	ciphertext, err := crypto.Encrypt(string(plaintext), key)
	if err != nil {
		log.Fatalf("error encrypting judge profile: %v", err)
	}

	metadataHash := "0x" + hex.EncodeToString(inft.Keccak256([]byte(ciphertext)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	receipt, err := storage.NewIndexerClient(cfg.IndexerRPCURL).Upload(ctx, []byte(ciphertext))
	if err != nil {
		log.Fatalf("error uploading encrypted profile: %v", err)
	}

	log.Printf("encrypted profile uploaded")
	log.Printf("  root hash:       %s", receipt.RootHash)
	log.Printf("  upload tx:       %s", receipt.TxHash)
	log.Printf("  metadata hash:   %s", metadataHash)
	log.Printf("  metadata key:    %s", key)
	log.Printf("mint with encryptedURI=%s metadataHash=%s, then set METADATA_SYM_KEY_BASE64 on the API server", receipt.RootHash, metadataHash)
}
