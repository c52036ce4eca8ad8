// sovid-ledgerd serves the identity ledger over gRPC.
//
// The ledger state is in-process; an optional filesystem archive keeps the
// canonical bytes of every committed transaction. Configuration is read
// from flags, then a config file, then SOVID_* environment variables.
package main

import (
	"flag"
	"net"
	"os"
	"strings"

	"github.com/mborders/logmatic"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"xdao.co/sovid/ledger"
	"xdao.co/sovid/ledger/archivefs"
	"xdao.co/sovid/ledger/grpcledger"
)

func main() {
	fs := flag.NewFlagSet("sovid-ledgerd", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (yaml)")
	listen := fs.String("listen", "", "Listen address (overrides config)")
	archiveDir := fs.String("archive", "", "Archive directory (overrides config)")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	_ = fs.Parse(os.Args[1:])

	l := logmatic.NewLogger()

	conf := viper.New()
	conf.SetDefault("listen", "127.0.0.1:7878")
	conf.SetDefault("archive", "")
	conf.SetDefault("loglevel", "info")
	conf.SetEnvPrefix("sovid")
	conf.AutomaticEnv()
	if *configPath != "" {
		conf.SetConfigFile(*configPath)
		if err := conf.ReadInConfig(); err != nil {
			l.Fatal("read config: %s", err)
		}
	}
	if *listen != "" {
		conf.Set("listen", *listen)
	}
	if *archiveDir != "" {
		conf.Set("archive", *archiveDir)
	}
	if *logLevel != "" {
		conf.Set("loglevel", *logLevel)
	}

	switch strings.ToLower(conf.GetString("loglevel")) {
	case "debug":
		l.SetLevel(logmatic.DEBUG)
	case "info":
		l.SetLevel(logmatic.INFO)
	case "warn":
		l.SetLevel(logmatic.WARN)
	case "error":
		l.SetLevel(logmatic.ERROR)
	default:
		l.Fatal("unknown log level %q", conf.GetString("loglevel"))
	}

	mem := ledger.NewMemory()
	if dir := conf.GetString("archive"); dir != "" {
		archive, err := archivefs.New(dir)
		if err != nil {
			l.Fatal("open archive: %s", err)
		}
		mem.WithArchive(archive)
		l.Info("archiving committed transactions to %s", dir)
	}

	lis, err := net.Listen("tcp", conf.GetString("listen"))
	if err != nil {
		l.Fatal("listen: %s", err)
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpcledger.RegisterLedgerServer(s, &grpcledger.Server{Ledger: mem, Seeder: mem})

	l.Info("sovid-ledgerd listening on %s", lis.Addr())
	if err := s.Serve(lis); err != nil {
		l.Fatal("serve: %s", err)
	}
}
