package cmd

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"paychan/channel"
	"paychan/config"
	"paychan/db"
	"paychan/events"
	"paychan/interfaces"
	"paychan/jsonrpc"
	"paychan/jsonx"
	"paychan/ledgerclient"
	"paychan/logx"
	"paychan/monitoring"
	"paychan/signing"
	"paychan/store"
	"paychan/x402"
)

const (
	configPath      = "config/paychan.yml"
	topupConfigPath = "config/paychan.ini"

	// Price of one request against the demo paywalled resource, in the
	// smallest amount unit.
	demoResourcePrice = 1
)

var (
	configFile string
	iniFile    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the payment channel engine",
	Run: func(cmd *cobra.Command, args []string) {
		runEngine(configFile, iniFile)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&configFile, "config", "c", configPath, "Engine config file (yaml)")
	runCmd.Flags().StringVar(&iniFile, "policy-config", topupConfigPath, "Topup and batch policy config file (ini)")
}

func runEngine(configFile, iniFile string) {
	cfg, err := config.LoadEngineConfig(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	topupCfg, err := config.LoadTopupConfig(iniFile)
	if err != nil {
		log.Fatalf("Failed to load topup config: %v", err)
	}
	batchCfg, err := config.LoadBatchConfig(iniFile)
	if err != nil {
		log.Fatalf("Failed to load batch config: %v", err)
	}

	privKey, err := config.LoadSecp256k1PrivKey(cfg.Self.PrivKeyPath)
	if err != nil {
		log.Fatalf("Failed to load private key: %v", err)
	}
	signer := signing.NewSecp256k1Signer()
	senderAddr, err := signing.AddressFromPrivateKey(privKey)
	if err != nil {
		log.Fatalf("Failed to derive sender address: %v", err)
	}
	if cfg.Self.Address != "" && !signing.AddressesEqual(cfg.Self.Address, senderAddr) {
		log.Fatalf("Configured address %s does not match key-derived address %s", cfg.Self.Address, senderAddr)
	}

	provider, err := openProvider(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	channelStore, err := store.NewChannelStore(provider)
	if err != nil {
		log.Fatalf("Failed to load channel store: %v", err)
	}
	receiptStore, err := store.NewReceiptStore(provider)
	if err != nil {
		log.Fatalf("Failed to load receipt store: %v", err)
	}

	monitoring.InitMetrics()
	monitoring.SetOpenChannels(channelStore.OpenCount())

	ledger := ledgerclient.NewClient(ledgerclient.Config{Endpoint: cfg.Ledger.Endpoint})
	defer ledger.Close()

	eventBus := events.NewEventBus()
	router := events.NewEventRouter(eventBus)

	engine := channel.NewEngine(
		channelStore, receiptStore, signer, ledger, router,
		privKey, senderAddr, cfg, topupCfg, batchCfg,
	)
	logEvents(eventBus)

	rpcServer := jsonrpc.NewServer(cfg.Self.RPCAddr, engine)
	if corsCfg, ok := jsonrpc.CORSFromEnv(); ok {
		rpcServer.SetCORSConfig(corsCfg)
	}
	rpcServer.Start()

	go serveHTTP(cfg, engine, senderAddr)

	logx.Info("ENGINE", "payment channel engine running", "address", senderAddr, "rpc", cfg.Self.RPCAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logx.Info("ENGINE", "shutting down")
	channelStore.MustClose()
}

// openProvider picks the storage backend from config. Both backends share
// one key layout, so switching between them only needs a restart.
func openProvider(cfg *config.EngineConfig) (db.DatabaseProvider, error) {
	dir := cfg.Store.Directory
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	switch cfg.Store.Type {
	case "bbolt":
		return db.NewBoltProvider(dir)
	default:
		return db.NewLevelDBProvider(filepath.Join(dir, "leveldb"))
	}
}

// serveHTTP exposes metrics plus a small paywalled demo resource that
// exercises the x402 flow end to end against this engine's own verifier.
func serveHTTP(cfg *config.EngineConfig, svc interfaces.ChannelService, senderAddr string) {
	if cfg.Self.MetricsAddr == "" {
		return
	}
	r := mux.NewRouter()
	r.Handle("/metrics", monitoring.Handler())
	r.Handle("/premium/{resource}", x402.Paywall(svc, senderAddr, uint256.NewInt(demoResourcePrice), http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		vars := mux.Vars(req)
		w.Header().Set("Content-Type", "application/json")
		body, _ := jsonx.Marshal(map[string]interface{}{
			"resource": vars["resource"],
			"paid_at":  time.Now().Unix(),
		})
		w.Write(body)
	})))
	if err := http.ListenAndServe(cfg.Self.MetricsAddr, r); err != nil {
		logx.Error("ENGINE", "http server stopped", "err", err)
	}
}

func logEvents(bus *events.EventBus) {
	_, ch := bus.Subscribe()
	go func() {
		for ev := range ch {
			logx.Debug("EVENT", string(ev.Type()), "channel", ev.ChannelID())
		}
	}()
}
