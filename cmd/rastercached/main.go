package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/waltercore/rastercache/internal/cache"
	"github.com/waltercore/rastercache/internal/config"
	"github.com/waltercore/rastercache/internal/diagnostics"
	"github.com/waltercore/rastercache/pkg/tilecache"
)

// tileStore is the subset shared by cache.TileCache and
// cache.PersistentTileCache: whichever façade cacheConfig.TTLDays selects,
// main only needs its core for diagnostics and a way to tear it down.
type tileStore interface {
	Core() *tilecache.Cache
	Close()
}

func main() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatal("Failed to get user home directory:", err)
	}

	appDir := filepath.Join(homeDir, ".rastercache")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		log.Fatal("Failed to create app directory:", err)
	}

	logPath := filepath.Join(appDir, "debug.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}
	defer logFile.Close()

	log.SetOutput(logFile)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	log.Println("=== rastercached started ===")
	println("Debug logs:", logPath)

	settingsPath, err := config.GetSettingsPath()
	if err != nil {
		log.Fatal("Failed to resolve settings path:", err)
	}
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		log.Fatal("Failed to load settings:", err)
	}
	log.Printf("Settings loaded from %s", settingsPath)

	cacheConfigPath := filepath.Join(appDir, "cache.json")
	cacheConfig, err := cache.LoadConfig(cacheConfigPath)
	if err != nil {
		log.Fatal("Failed to load cache config:", err)
	}

	// TTLDays > 0 opts into the date-aware façade so tiles expire on their
	// own schedule; TTLDays == 0 keeps tiles until evicted by capacity.
	var store tileStore
	if cacheConfig.TTLDays > 0 {
		pc, err := cache.NewPersistentTileCache(settings.CacheDir, cacheConfig.MaxSizeMB, cacheConfig.TTLDays)
		if err != nil {
			log.Fatal("Failed to start tile cache:", err)
		}
		store = pc
		log.Printf("Tile cache ready at %s (%d MB, %d day TTL)", settings.CacheDir, cacheConfig.MaxSizeMB, cacheConfig.TTLDays)
	} else {
		tc, err := cache.NewTileCache(settings.CacheDir, cacheConfig.MaxSizeMB)
		if err != nil {
			log.Fatal("Failed to start tile cache:", err)
		}
		store = tc
		log.Printf("Tile cache ready at %s (%d MB, no TTL)", settings.CacheDir, cacheConfig.MaxSizeMB)
	}
	defer store.Close()

	var diagServer *diagnostics.Server
	if settings.DiagnosticsAddr != "" {
		diagServer = diagnostics.NewServer(store.Core(), log.Default())
		go func() {
			if err := diagServer.Start(settings.DiagnosticsAddr); err != nil {
				log.Printf("diagnostics server stopped: %v", err)
			}
		}()
		log.Printf("Diagnostics server listening on %s", settings.DiagnosticsAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	if diagServer != nil {
		if err := diagServer.Shutdown(); err != nil {
			log.Printf("diagnostics server shutdown: %v", err)
		}
	}
	log.Println("=== rastercached stopped ===")
}
