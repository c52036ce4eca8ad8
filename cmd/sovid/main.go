package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"xdao.co/sovid/client"
	"xdao.co/sovid/didoc"
	"xdao.co/sovid/identity"
	"xdao.co/sovid/keys"
	"xdao.co/sovid/ledger"
	"xdao.co/sovid/ledger/grpcledger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "create":
		return cmdCreate(args[1:], out, errOut)
	case "owner":
		return cmdOwner(args[1:], out, errOut)
	case "delegate":
		return cmdDelegate(args[1:], out, errOut)
	case "attr":
		return cmdAttr(args[1:], out, errOut)
	case "destroy":
		return cmdDestroy(args[1:], out, errOut)
	case "info":
		return cmdInfo(args[1:], out, errOut)
	case "resolve":
		return cmdResolve(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "sovid: self-sovereign identity CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  sovid key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  sovid key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  sovid key list")
	fmt.Fprintln(w, "  sovid key export --name <name> [--role <role>]")
	fmt.Fprintln(w, "  sovid create --signer <name> [--signer-role <role>] --server <addr>")
	fmt.Fprintln(w, "  sovid owner change --token <hex> --new-owner <keyhash> --signer <name> --server <addr>")
	fmt.Fprintln(w, "  sovid delegate add --token <hex> --type <t> --address <keyhash> [--validity <ms>] --signer <name> --server <addr>")
	fmt.Fprintln(w, "  sovid delegate revoke --token <hex> --type <t> --address <keyhash> --signer <name> --server <addr>")
	fmt.Fprintln(w, "  sovid attr set --token <hex> --name <n> --value <v> [--validity <ms>] --signer <name> --server <addr>")
	fmt.Fprintln(w, "  sovid attr revoke --token <hex> --name <n> --value <v> --signer <name> --server <addr>")
	fmt.Fprintln(w, "  sovid destroy --token <hex> --signer <name> --server <addr>")
	fmt.Fprintln(w, "  sovid info (--token <hex> | --did <did>) --server <addr>")
	fmt.Fprintln(w, "  sovid resolve (--token <hex> | --did <did>) [--network <net>] [--now <ms>] --server <addr>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - --seed-hex must be 32 bytes (64 hex chars) ed25519 seed")
	fmt.Fprintln(w, "  - keys are stored under ~/.sovid/keys/<name> (0600 private key files)")
	fmt.Fprintln(w, "  - delegate types: veriKey, sigAuth, enc")
	fmt.Fprintln(w, "  - --validity is relative milliseconds; 0 means no expiry")
	fmt.Fprintln(w, "  - mutations declare a validity window of --window-ttl ms from the local clock")
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: sovid key <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: init, derive, list, export")
		return 2
	}
	switch args[0] {
	case "init":
		fs := flag.NewFlagSet("key init", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var name, seedHex, dir string
		var force bool
		fs.StringVar(&name, "name", "", "Key name")
		fs.StringVar(&seedHex, "seed-hex", "", "32-byte ed25519 seed, hex (generated when empty)")
		fs.StringVar(&dir, "keydir", "", "Key store directory (default ~/.sovid/keys)")
		fs.BoolVar(&force, "force", false, "Overwrite an existing key")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if name == "" {
			fmt.Fprintln(errOut, "usage: sovid key init --name <name> [--seed-hex <64hex>] [--force]")
			return 2
		}
		ks, err := keys.OpenKeyStore(dir)
		if err != nil {
			fmt.Fprintf(errOut, "open key store: %v\n", err)
			return 1
		}
		var seed []byte
		if seedHex != "" {
			if seed, err = keys.ParseSeedHex(seedHex); err != nil {
				fmt.Fprintf(errOut, "parse seed: %v\n", err)
				return 1
			}
		} else {
			seed = make([]byte, 32)
			if _, err := rand.Read(seed); err != nil {
				fmt.Fprintf(errOut, "generate seed: %v\n", err)
				return 1
			}
		}
		h, path, err := ks.InitializeRootKey(name, seed, force)
		if err != nil {
			fmt.Fprintf(errOut, "init key: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "name: %s\nkeyhash: %s\npath: %s\n", name, h, path)
		return 0
	case "derive":
		fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var from, role, dir string
		var force bool
		fs.StringVar(&from, "from", "", "Root key name")
		fs.StringVar(&role, "role", "", "Role to derive")
		fs.StringVar(&dir, "keydir", "", "Key store directory (default ~/.sovid/keys)")
		fs.BoolVar(&force, "force", false, "Overwrite an existing role key")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if from == "" || role == "" {
			fmt.Fprintln(errOut, "usage: sovid key derive --from <name> --role <role> [--force]")
			return 2
		}
		ks, err := keys.OpenKeyStore(dir)
		if err != nil {
			fmt.Fprintf(errOut, "open key store: %v\n", err)
			return 1
		}
		h, path, err := ks.DeriveRoleKey(from, role, force)
		if err != nil {
			fmt.Fprintf(errOut, "derive key: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "name: %s\nrole: %s\nkeyhash: %s\npath: %s\n", from, role, h, path)
		return 0
	case "list":
		fs := flag.NewFlagSet("key list", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var dir string
		fs.StringVar(&dir, "keydir", "", "Key store directory (default ~/.sovid/keys)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		ks, err := keys.OpenKeyStore(dir)
		if err != nil {
			fmt.Fprintf(errOut, "open key store: %v\n", err)
			return 1
		}
		entries, err := ks.ListKeys()
		if err != nil {
			fmt.Fprintf(errOut, "list keys: %v\n", err)
			return 1
		}
		for _, e := range entries {
			fmt.Fprintln(out, e.Name)
			for _, role := range e.Roles {
				fmt.Fprintf(out, "  %s\n", role)
			}
		}
		return 0
	case "export":
		fs := flag.NewFlagSet("key export", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var name, role, dir string
		fs.StringVar(&name, "name", "", "Key name")
		fs.StringVar(&role, "role", "", "Role (root key when empty)")
		fs.StringVar(&dir, "keydir", "", "Key store directory (default ~/.sovid/keys)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if name == "" {
			fmt.Fprintln(errOut, "usage: sovid key export --name <name> [--role <role>]")
			return 2
		}
		ks, err := keys.OpenKeyStore(dir)
		if err != nil {
			fmt.Fprintf(errOut, "open key store: %v\n", err)
			return 1
		}
		h, err := ks.ExportKeyHash(name, role)
		if err != nil {
			fmt.Fprintf(errOut, "export key: %v\n", err)
			return 1
		}
		fmt.Fprintln(out, h)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n", args[0])
		return 2
	}
}

// ledgerFlags are the flags shared by every command that talks to a
// ledger daemon.
type ledgerFlags struct {
	server    string
	signer    string
	role      string
	keydir    string
	windowTTL int64
}

func (lf *ledgerFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&lf.server, "server", "127.0.0.1:7878", "Ledger daemon address")
	fs.StringVar(&lf.signer, "signer", "", "Signing key name")
	fs.StringVar(&lf.role, "signer-role", "", "Signing key role (root key when empty)")
	fs.StringVar(&lf.keydir, "keydir", "", "Key store directory (default ~/.sovid/keys)")
	fs.Int64Var(&lf.windowTTL, "window-ttl", 5*60*1000, "Declared validity window length, ms")
}

func (lf *ledgerFlags) open() (*client.Client, func(), error) {
	ks, err := keys.OpenKeyStore(lf.keydir)
	if err != nil {
		return nil, nil, err
	}
	if lf.signer == "" {
		return nil, nil, fmt.Errorf("--signer is required")
	}
	signer, err := ks.Signer(lf.signer, lf.role)
	if err != nil {
		return nil, nil, err
	}
	lc, err := grpcledger.Dial(lf.server, grpcledger.DialOptions{Timeout: 10 * time.Second})
	if err != nil {
		return nil, nil, err
	}
	lc.Signers = []keys.Signer{signer}
	return client.New(lc, signer.KeyHash()), func() { _ = lc.Close() }, nil
}

func (lf *ledgerFlags) window() identity.Interval {
	now := time.Now().UnixMilli()
	return identity.BoundedInterval(now, now+lf.windowTTL)
}

// openReadOnly dials without a signing key, for info/resolve.
func openReadOnly(server string) (*grpcledger.Client, func(), error) {
	lc, err := grpcledger.Dial(server, grpcledger.DialOptions{Timeout: 10 * time.Second})
	if err != nil {
		return nil, nil, err
	}
	return lc, func() { _ = lc.Close() }, nil
}

func cmdCreate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var lf ledgerFlags
	lf.register(fs)
	var network string
	fs.StringVar(&network, "network", "", "Network segment for the printed DID")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cl, closeFn, err := lf.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	entry, err := cl.Create()
	if err != nil {
		fmt.Fprintf(errOut, "create: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "token: %s\ndid: %s\n", entry.Token, didoc.Format(network, entry.Token))
	return 0
}

func cmdOwner(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 || args[0] != "change" {
		fmt.Fprintln(errOut, "usage: sovid owner change --token <hex> --new-owner <keyhash> ...")
		return 2
	}
	fs := flag.NewFlagSet("owner change", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var lf ledgerFlags
	lf.register(fs)
	var tokenHex, newOwnerHex string
	fs.StringVar(&tokenHex, "token", "", "Identity token, hex")
	fs.StringVar(&newOwnerHex, "new-owner", "", "New owner key hash, hex")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	token, err := identity.ParseTokenName(tokenHex)
	if err != nil {
		fmt.Fprintf(errOut, "parse --token: %v\n", err)
		return 2
	}
	newOwner, err := keys.ParseKeyHash(newOwnerHex)
	if err != nil {
		fmt.Fprintf(errOut, "parse --new-owner: %v\n", err)
		return 2
	}
	cl, closeFn, err := lf.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	entry, err := cl.ChangeOwner(token, newOwner, lf.window())
	if err != nil {
		fmt.Fprintf(errOut, "change owner: %v\n", err)
		return 1
	}
	return printEntry(out, errOut, entry)
}

func cmdDelegate(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: sovid delegate <add|revoke> ...")
		return 2
	}
	sub := args[0]
	if sub != "add" && sub != "revoke" {
		fmt.Fprintf(errOut, "unknown delegate subcommand: %s\n", sub)
		return 2
	}
	fs := flag.NewFlagSet("delegate "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var lf ledgerFlags
	lf.register(fs)
	var tokenHex, delegateType, addressHex string
	var validity int64
	fs.StringVar(&tokenHex, "token", "", "Identity token, hex")
	fs.StringVar(&delegateType, "type", identity.DelegateTypeVeriKey, "Delegate type")
	fs.StringVar(&addressHex, "address", "", "Delegate key hash, hex")
	if sub == "add" {
		fs.Int64Var(&validity, "validity", 0, "Relative validity, ms (0 = no expiry)")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	token, err := identity.ParseTokenName(tokenHex)
	if err != nil {
		fmt.Fprintf(errOut, "parse --token: %v\n", err)
		return 2
	}
	address, err := keys.ParseKeyHash(addressHex)
	if err != nil {
		fmt.Fprintf(errOut, "parse --address: %v\n", err)
		return 2
	}
	cl, closeFn, err := lf.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	var entry *ledger.Entry
	if sub == "add" {
		entry, err = cl.AddDelegate(token, delegateType, address, validity, lf.window())
	} else {
		entry, err = cl.RevokeDelegate(token, delegateType, address, lf.window())
	}
	if err != nil {
		fmt.Fprintf(errOut, "delegate %s: %v\n", sub, err)
		return 1
	}
	return printEntry(out, errOut, entry)
}

func cmdAttr(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: sovid attr <set|revoke> ...")
		return 2
	}
	sub := args[0]
	if sub != "set" && sub != "revoke" {
		fmt.Fprintf(errOut, "unknown attr subcommand: %s\n", sub)
		return 2
	}
	fs := flag.NewFlagSet("attr "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var lf ledgerFlags
	lf.register(fs)
	var tokenHex, name, value string
	var validity int64
	fs.StringVar(&tokenHex, "token", "", "Identity token, hex")
	fs.StringVar(&name, "name", "", "Attribute name")
	fs.StringVar(&value, "value", "", "Attribute value")
	if sub == "set" {
		fs.Int64Var(&validity, "validity", 0, "Relative validity, ms (0 = no expiry)")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "--name is required")
		return 2
	}
	token, err := identity.ParseTokenName(tokenHex)
	if err != nil {
		fmt.Fprintf(errOut, "parse --token: %v\n", err)
		return 2
	}
	cl, closeFn, err := lf.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	var entry *ledger.Entry
	if sub == "set" {
		entry, err = cl.SetAttribute(token, []byte(name), []byte(value), validity, lf.window())
	} else {
		entry, err = cl.RevokeAttribute(token, []byte(name), []byte(value), lf.window())
	}
	if err != nil {
		fmt.Fprintf(errOut, "attr %s: %v\n", sub, err)
		return 1
	}
	return printEntry(out, errOut, entry)
}

func cmdDestroy(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("destroy", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var lf ledgerFlags
	lf.register(fs)
	var tokenHex string
	fs.StringVar(&tokenHex, "token", "", "Identity token, hex")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	token, err := identity.ParseTokenName(tokenHex)
	if err != nil {
		fmt.Fprintf(errOut, "parse --token: %v\n", err)
		return 2
	}
	cl, closeFn, err := lf.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	if err := cl.Destroy(token, lf.window()); err != nil {
		fmt.Fprintf(errOut, "destroy: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, "destroyed")
	return 0
}

func cmdInfo(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var server, tokenHex, did string
	fs.StringVar(&server, "server", "127.0.0.1:7878", "Ledger daemon address")
	fs.StringVar(&tokenHex, "token", "", "Identity token, hex")
	fs.StringVar(&did, "did", "", "DID (alternative to --token)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	token, code := tokenArg(tokenHex, did, errOut)
	if code != 0 {
		return code
	}
	lc, closeFn, err := openReadOnly(server)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	entry, err := lc.Head(token)
	if err != nil {
		fmt.Fprintf(errOut, "head: %v\n", err)
		return 1
	}
	return printEntry(out, errOut, entry)
}

func cmdResolve(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var server, tokenHex, did, network string
	var now int64
	fs.StringVar(&server, "server", "127.0.0.1:7878", "Ledger daemon address")
	fs.StringVar(&tokenHex, "token", "", "Identity token, hex")
	fs.StringVar(&did, "did", "", "DID (alternative to --token)")
	fs.StringVar(&network, "network", "", "Network segment for the document id")
	fs.Int64Var(&now, "now", 0, "Evaluation instant, ms since epoch (0 = local clock)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if did != "" && network == "" {
		if n, _, perr := didoc.Parse(did); perr == nil {
			network = n
		}
	}
	token, code := tokenArg(tokenHex, did, errOut)
	if code != 0 {
		return code
	}
	if now == 0 {
		now = time.Now().UnixMilli()
	}
	lc, closeFn, err := openReadOnly(server)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	entry, err := lc.Head(token)
	if err != nil {
		fmt.Fprintf(errOut, "head: %v\n", err)
		return 1
	}
	doc, err := didoc.Build(didoc.Format(network, token), entry.Record, now)
	if err != nil {
		fmt.Fprintf(errOut, "build document: %v\n", err)
		return 1
	}
	b, err := didoc.Encode(doc)
	if err != nil {
		fmt.Fprintf(errOut, "encode document: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, string(b))
	return 0
}

func tokenArg(tokenHex, did string, errOut io.Writer) (identity.TokenName, int) {
	switch {
	case tokenHex != "" && did != "":
		fmt.Fprintln(errOut, "use --token or --did, not both")
		return identity.TokenName{}, 2
	case tokenHex != "":
		token, err := identity.ParseTokenName(tokenHex)
		if err != nil {
			fmt.Fprintf(errOut, "parse --token: %v\n", err)
			return identity.TokenName{}, 2
		}
		return token, 0
	case did != "":
		_, token, err := didoc.Parse(did)
		if err != nil {
			fmt.Fprintf(errOut, "parse --did: %v\n", err)
			return identity.TokenName{}, 2
		}
		return token, 0
	default:
		fmt.Fprintln(errOut, "--token or --did is required")
		return identity.TokenName{}, 2
	}
}

func printEntry(out, errOut io.Writer, entry *ledger.Entry) int {
	record, err := identity.EncodeRecord(entry.Record)
	if err != nil {
		fmt.Fprintf(errOut, "encode record: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "token: %s\nref: %s\n%s\n", entry.Token, entry.Ref, record)
	return 0
}
