package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/openchange/mapisync"
	"github.com/openchange/mapisync/ics"
	"github.com/openchange/mapisync/utils"
)

func parseFolder(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

func parseFolderTag(args []string) (uint64, ics.PropertyTag, error) {
	folder, err := parseFolder(args[0])
	if err != nil {
		return 0, ics.PropertyTag{}, err
	}
	tag, err := ics.ParseTag(args[1])
	if err != nil {
		return 0, ics.PropertyTag{}, err
	}
	if !ics.IsStateTag(tag) {
		return 0, ics.PropertyTag{}, fmt.Errorf("%w: %s", ics.ErrUnexpectedProperty, tag)
	}
	return folder, tag, nil
}

// withStore runs fn against the configured store and closes it after.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, s *mapisync.Store, conf *Config, log utils.Logger) error) error {
	conf, log, err := setup(cmd)
	if err != nil {
		return err
	}
	s, err := openStore(conf, log)
	if err != nil {
		return err
	}
	err = fn(cmd.Context(), s, conf, log)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "read and write the sync-state store",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <folder> <tag>",
			Short: "print a stored IDSET as hex",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				folder, tag, err := parseFolderTag(args)
				if err != nil {
					return err
				}
				return withStore(cmd, func(ctx context.Context, s *mapisync.Store, conf *Config, log utils.Logger) error {
					set, err := s.GetState(folder, tag)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(set.Serialize()))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "put <folder> <tag> <hex>",
			Short: "replace a stored IDSET",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				folder, tag, err := parseFolderTag(args)
				if err != nil {
					return err
				}
				set, err := parseIDSet(args[2])
				if err != nil {
					return err
				}
				return withStore(cmd, func(ctx context.Context, s *mapisync.Store, conf *Config, log utils.Logger) error {
					set.SetMode(conf.Mode)
					return s.PutState(ctx, folder, tag, set)
				})
			},
		},
		&cobra.Command{
			Use:   "merge <folder> <tag> <hex>",
			Short: "add an IDSET to a stored one",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				folder, tag, err := parseFolderTag(args)
				if err != nil {
					return err
				}
				set, err := parseIDSet(args[2])
				if err != nil {
					return err
				}
				return withStore(cmd, func(ctx context.Context, s *mapisync.Store, conf *Config, log utils.Logger) error {
					set.SetMode(conf.Mode)
					return s.MergeState(ctx, folder, tag, set)
				})
			},
		},
		&cobra.Command{
			Use:   "delete <folder> <tag>",
			Short: "remove a stored IDSET",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				folder, tag, err := parseFolderTag(args)
				if err != nil {
					return err
				}
				return withStore(cmd, func(ctx context.Context, s *mapisync.Store, conf *Config, log utils.Logger) error {
					return s.DeleteState(folder, tag)
				})
			},
		},
		&cobra.Command{
			Use:   "digest <folder> <tag>",
			Short: "print the xxhash digest of a stored state",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				folder, tag, err := parseFolderTag(args)
				if err != nil {
					return err
				}
				return withStore(cmd, func(ctx context.Context, s *mapisync.Store, conf *Config, log utils.Logger) error {
					d, err := s.Digest(folder, tag)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%016x\n", d)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "export <folder>",
			Short: "print the folder's ICS state stream as hex",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				folder, err := parseFolder(args[0])
				if err != nil {
					return err
				}
				return withStore(cmd, func(ctx context.Context, s *mapisync.Store, conf *Config, log utils.Logger) error {
					st, err := s.LoadState(folder)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(ics.MarshalState(st)))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "import <folder> <hex>",
			Short: "replace the folder's state from an ICS state stream",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				folder, err := parseFolder(args[0])
				if err != nil {
					return err
				}
				buf, err := parseHex(args[1])
				if err != nil {
					return err
				}
				st, err := ics.UnmarshalState(buf)
				if err != nil {
					return err
				}
				return withStore(cmd, func(ctx context.Context, s *mapisync.Store, conf *Config, log utils.Logger) error {
					for _, tag := range ics.StateTags {
						st.Get(tag).SetMode(conf.Mode)
					}
					return s.SaveState(ctx, folder, st)
				})
			},
		},
		&cobra.Command{
			Use:   "dump [folder]",
			Short: "list stored states",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(ctx context.Context, s *mapisync.Store, conf *Config, log utils.Logger) error {
					if len(args) == 0 {
						return s.DumpAll(cmd.OutOrStdout())
					}
					folder, err := parseFolder(args[0])
					if err != nil {
						return err
					}
					return s.DumpFolder(cmd.OutOrStdout(), folder)
				})
			},
		},
		&cobra.Command{
			Use:   "folders",
			Short: "list folders that have state",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(ctx context.Context, s *mapisync.Store, conf *Config, log utils.Logger) error {
					folders, err := s.Folders()
					if err != nil {
						return err
					}
					for _, f := range folders {
						fmt.Fprintf(cmd.OutOrStdout(), "0x%x\n", f)
					}
					return nil
				})
			},
		},
	)
	return cmd
}
