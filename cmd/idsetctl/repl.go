package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"

	"github.com/openchange/mapisync"
	"github.com/openchange/mapisync/ics"
	"github.com/openchange/mapisync/idset"
	"github.com/openchange/mapisync/utils"
)

// REPL per se.
type REPL struct {
	Store *mapisync.Store
	Mode  idset.Mode
	Out   io.Writer

	rl      *readline.Instance
	session *mapisync.Session
}

var ErrUsage = errors.New("usage")

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),

	readline.PcItem("decode"),
	readline.PcItem("build"),
	readline.PcItem("merge"),
	readline.PcItem("includes"),

	readline.PcItem("get"),
	readline.PcItem("put"),
	readline.PcItem("add"),
	readline.PcItem("dump"),
	readline.PcItem("folders"),

	readline.PcItem("begin"),
	readline.PcItem("observe"),
	readline.PcItem("commit"),
	readline.PcItem("abort"),

	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

const replHelp = `decode <hex>                     ranges of an IDSET
build <guid> <counter>...        serialize counters of one replica
merge <hex> <hex>...             union of IDSETs
includes <hex> <guid> <counter>  membership test
get <folder> <tag>               stored IDSET
put <folder> <tag> <hex>         replace stored IDSET
add <folder> <tag> <hex>         merge into stored IDSET
dump [folder]                    list stored states
folders                          folders with state
begin <folder>                   start a sync session
observe <tag> <guid> <counter>   record a counter in the session
commit | abort                   finish the session
exit`

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func (repl *REPL) Open(historyFile string) (err error) {
	repl.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     historyFile,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return
	}
	repl.rl.CaptureExitSignal()
	return
}

func (repl *REPL) Close() error {
	if repl.session != nil {
		_ = repl.Store.AbortSession(repl.session.ID)
		repl.session = nil
	}
	if repl.rl != nil {
		_ = repl.rl.Close()
		repl.rl = nil
	}
	return nil
}

func (repl *REPL) REPL(ctx context.Context) error {
	line, err := repl.rl.Readline()
	if err == readline.ErrInterrupt && len(line) != 0 {
		return nil
	}
	if err != nil {
		return err
	}
	return repl.Execute(ctx, line)
}

func (repl *REPL) printSet(set *idset.IDSet) {
	fmt.Fprintln(repl.Out, hex.EncodeToString(set.Serialize()))
}

// Execute runs one command line; io.EOF asks to leave.
func (repl *REPL) Execute(ctx context.Context, line string) (err error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "help":
		fmt.Fprintln(repl.Out, replHelp)
	case "exit", "quit":
		return io.EOF
	// ----- codec -----
	case "decode":
		if len(args) != 1 {
			return ErrUsage
		}
		var set *idset.IDSet
		if set, err = parseIDSet(args[0]); err == nil {
			fmt.Fprintln(repl.Out, set.String())
		}
	case "build":
		if len(args) < 1 {
			return ErrUsage
		}
		var guid idset.GUID
		if guid, err = idset.ParseGUID(args[0]); err != nil {
			return
		}
		values := make([]uint64, 0, len(args)-1)
		for _, a := range args[1:] {
			v, err := parseCounter(a)
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		rs := idset.MakeFromObservations(guid, values, repl.Mode)
		repl.printSet(&idset.IDSet{Replicas: []idset.ReplicaSet{rs}})
	case "merge":
		if len(args) < 2 {
			return ErrUsage
		}
		var acc *idset.IDSet
		for _, a := range args {
			set, err := parseIDSet(a)
			if err != nil {
				return err
			}
			acc = idset.Merge(acc, set)
		}
		repl.printSet(acc)
	case "includes":
		if len(args) != 3 {
			return ErrUsage
		}
		set, err := parseIDSet(args[0])
		if err != nil {
			return err
		}
		guid, err := idset.ParseGUID(args[1])
		if err != nil {
			return err
		}
		v, err := parseCounter(args[2])
		if err != nil {
			return err
		}
		fmt.Fprintln(repl.Out, idset.IncludesID(set, guid, v))
	// ----- store -----
	case "get":
		if len(args) != 2 {
			return ErrUsage
		}
		folder, tag, err := parseFolderTag(args)
		if err != nil {
			return err
		}
		set, err := repl.Store.GetState(folder, tag)
		if err != nil {
			return err
		}
		fmt.Fprintln(repl.Out, set.String())
	case "put", "add":
		if len(args) != 3 {
			return ErrUsage
		}
		folder, tag, err := parseFolderTag(args)
		if err != nil {
			return err
		}
		set, err := parseIDSet(args[2])
		if err != nil {
			return err
		}
		set.SetMode(repl.Mode)
		if cmd == "put" {
			return repl.Store.PutState(ctx, folder, tag, set)
		}
		return repl.Store.MergeState(ctx, folder, tag, set)
	case "dump":
		if len(args) == 0 {
			return repl.Store.DumpAll(repl.Out)
		}
		folder, err := parseFolder(args[0])
		if err != nil {
			return err
		}
		return repl.Store.DumpFolder(repl.Out, folder)
	case "folders":
		folders, err := repl.Store.Folders()
		if err != nil {
			return err
		}
		for _, f := range folders {
			fmt.Fprintf(repl.Out, "0x%x\n", f)
		}
	// ----- sessions -----
	case "begin":
		if len(args) != 1 || repl.session != nil {
			return ErrUsage
		}
		folder, err := parseFolder(args[0])
		if err != nil {
			return err
		}
		repl.session, err = repl.Store.BeginSession(folder, repl.Mode, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(repl.Out, repl.session.ID.String())
	case "observe":
		if len(args) != 3 || repl.session == nil {
			return ErrUsage
		}
		tag, err := ics.ParseTag(args[0])
		if err != nil {
			return err
		}
		guid, err := idset.ParseGUID(args[1])
		if err != nil {
			return err
		}
		v, err := parseCounter(args[2])
		if err != nil {
			return err
		}
		return repl.session.Observe(tag, guid, v)
	case "commit", "abort":
		if repl.session == nil {
			return ErrUsage
		}
		id := repl.session.ID
		repl.session = nil
		if cmd == "commit" {
			return repl.Store.CommitSession(ctx, id)
		}
		return repl.Store.AbortSession(id)
	default:
		return fmt.Errorf("command unknown: %s", cmd)
	}
	return
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "interactive shell over the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *mapisync.Store, conf *Config, log utils.Logger) error {
				repl := REPL{Store: s, Mode: conf.Mode, Out: cmd.OutOrStdout()}
				if err := repl.Open(conf.HistoryFile); err != nil {
					return err
				}
				defer repl.Close()
				for {
					err := repl.REPL(ctx)
					if err == io.EOF {
						return nil
					} else if err != nil {
						fmt.Fprintln(repl.Out, err.Error())
					}
				}
			})
		},
	}
}
