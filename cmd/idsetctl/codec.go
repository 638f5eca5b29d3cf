package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openchange/mapisync/ics"
	"github.com/openchange/mapisync/idset"
)

// parseHex accepts hex with optional whitespace and 0x prefix.
func parseHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

func parseIDSet(s string) (*idset.IDSet, error) {
	buf, err := parseHex(s)
	if err != nil {
		return nil, err
	}
	return ics.ParseValue(buf)
}

func parseCounter(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, err
	}
	if v > idset.MaxGlobCnt {
		return 0, fmt.Errorf("counter %s exceeds 48 bits", s)
	}
	return v, nil
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "print the ranges of a serialized IDSET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := parseIDSet(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rs := range set.Replicas {
				fmt.Fprintf(out, "%s\t%d\t%s\n", rs.GUID, rs.Count(), rs.String())
			}
			return nil
		},
	}
}

func newBuildCmd() *cobra.Command {
	var coalesced bool
	cmd := &cobra.Command{
		Use:   "build <guid> <counter>...",
		Short: "serialize observed counters of one replica as an IDSET",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guid, err := idset.ParseGUID(args[0])
			if err != nil {
				return err
			}
			mode := idset.Precise
			if coalesced {
				mode = idset.Coalesced
			}
			acc := idset.NewRawAccumulator(mode)
			for _, arg := range args[1:] {
				v, err := parseCounter(arg)
				if err != nil {
					return err
				}
				acc.Push(guid, v)
			}
			set := acc.Finalize()
			if set.Len() == 0 {
				set.Replicas = append(set.Replicas, idset.ReplicaSet{GUID: guid, Mode: mode})
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(set.Serialize()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&coalesced, "coalesced", false, "keep a single min..max range")
	return cmd
}

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <hex> <hex>...",
		Short: "union serialized IDSETs",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var acc *idset.IDSet
			for _, arg := range args {
				set, err := parseIDSet(arg)
				if err != nil {
					return err
				}
				acc = idset.Merge(acc, set)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(acc.Serialize()))
			return nil
		},
	}
}

func newIncludesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "includes <hex> <guid> <counter>",
		Short: "test whether a counter of a replica is in an IDSET",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			fmt.Fprintln(cmd.OutOrStdout(), idset.IncludesID(set, guid, v))
			return nil
		},
	}
}
