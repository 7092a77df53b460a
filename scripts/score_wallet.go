package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"cred-credit-engine/internal/domain/service"
	"cred-credit-engine/internal/infrastructure/blockchain"
	"cred-credit-engine/internal/infrastructure/config"
	"cred-credit-engine/internal/infrastructure/database"
	"cred-credit-engine/internal/infrastructure/logger"

	"go.uber.org/zap"
)

// Scores a wallet against the indexed history without touching the ledger.
// Usage: go run ./scripts <wallet-address>
func main() {
	log, err := logger.NewLogger("info")
	if err != nil {
		panic(err)
	}
	log = log.WithComponent("score-wallet-script")

	if len(os.Args) < 2 {
		log.Fatal("Usage: score_wallet <wallet-address>")
	}
	wallet, ok := blockchain.NormalizeAddress(os.Args[1])
	if !ok {
		log.Fatal("Invalid wallet address", zap.String("address", os.Args[1]))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	neo4jClient := database.NewNeo4JClient(&cfg.Neo4J, log)
	if err := neo4jClient.Connect(ctx); err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer neo4jClient.Close(ctx)

	scorer := service.NewCreditScorer()
	repo := database.NewNeo4JTransactionRepository(neo4jClient, log)

	history, err := repo.GetTransactionsByWallet(ctx, wallet, cfg.Scoring.HistoryLimit)
	if err != nil {
		log.Fatal("Failed to fetch history", zap.Error(err))
	}

	now := time.Now()
	out := map[string]any{
		"wallet":  wallet,
		"history": len(history),
		"summary": scorer.Summarize(wallet, history, now),
		"result":  scorer.Score(wallet, history, now),
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatal("Failed to encode result", zap.Error(err))
	}
	fmt.Println(string(encoded))
}
