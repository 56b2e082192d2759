// Copyright 2024 The Batkernel Authors
// This file is part of Batkernel.
//
// Batkernel is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Batkernel is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Batkernel. If not, see <http://www.gnu.org/licenses/>.

// Command batkernel is a small operator CLI over the storage engine:
// initializing a farm, creating and appending to columns, projecting
// ranges, committing, and listing the BBP.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/batkernel/batkernel-lib/config"
	"github.com/batkernel/batkernel-lib/gdk"
	"github.com/batkernel/batkernel-lib/log"
	"github.com/batkernel/batkernel/engine"
)

var (
	farmPath string
	farmName string
)

func main() {
	root := &cobra.Command{
		Use:   "batkernel",
		Short: "Operate a batkernel storage farm",
	}
	root.PersistentFlags().StringVar(&farmPath, "farm-path", "./batdata", "farm root directory")
	root.PersistentFlags().StringVar(&farmName, "farm-name", "default", "farm name")

	root.AddCommand(
		farmInitCmd(),
		batCreateCmd(),
		batAppendCmd(),
		batProjectCmd(),
		commitCmd(),
		bbpListCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func open() (*engine.Engine, error) {
	cfg := &config.Farm{Name: farmName, Path: farmPath, Persistent: true}
	return engine.Open(cfg, log.New("info"), nil)
}

func farmInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "farm-init",
		Short: "Create the on-disk layout for a new farm",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			fmt.Printf("farm %q initialized at %s\n", e.Farm.Name, e.Farm.Path)
			return nil
		},
	}
}

func batCreateCmd() *cobra.Command {
	var typeName string
	var capacity uint64
	cmd := &cobra.Command{
		Use:   "bat-create NAME",
		Short: "Create a new persistent column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			t, err := parseType(typeName)
			if err != nil {
				return err
			}
			if _, err := e.CreateColumn(args[0], t, capacity); err != nil {
				return err
			}
			fmt.Printf("created column %q (type=%s, capacity=%d)\n", args[0], typeName, capacity)
			return nil
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "int", "atom type name (int, str, lng, flt, dbl, date, ...)")
	cmd.Flags().Uint64Var(&capacity, "capacity", 64, "initial row capacity")
	return cmd
}

func batAppendCmd() *cobra.Command {
	var typeName string
	cmd := &cobra.Command{
		Use:   "bat-append NAME VALUE",
		Short: "Append one value to an existing column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			b, err := e.Lookup(args[0])
			if err != nil {
				return err
			}
			t, err := parseType(typeName)
			if err != nil {
				return err
			}
			atom := gdk.MustLookup(t)
			v, err := atom.Parse(args[1])
			if err != nil {
				return fmt.Errorf("parse value: %w", err)
			}
			return b.BUNappend(v, true)
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "int", "atom type name, must match the column")
	return cmd
}

func batProjectCmd() *cobra.Command {
	var lo, hi uint64
	cmd := &cobra.Command{
		Use:   "bat-project NAME",
		Short: "Project a dense range of rows from a column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			result, err := e.Project(args[0], gdk.OID(lo), gdk.OID(hi))
			if err != nil {
				return err
			}
			atom := gdk.MustLookup(result.Col.Type)
			for i := uint64(0); i < result.Count(); i++ {
				v, err := result.Fetch(i)
				if err != nil {
					return err
				}
				fmt.Println(atom.Format(v))
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&lo, "lo", 0, "inclusive range start")
	cmd.Flags().Uint64Var(&hi, "hi", 0, "exclusive range end")
	return cmd
}

func commitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Flush dirty heaps and install a new BBP.dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			return e.Commit()
		},
	}
}

func bbpListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bbp-list",
		Short: "List registered bat ids and names",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			for id := 1; id < 1<<16; id++ {
				name, ok := e.Pool.NameOf(id)
				if !ok {
					break
				}
				fmt.Printf("%d\t%s\n", id, name)
			}
			return nil
		},
	}
}

func parseType(name string) (gdk.Type, error) {
	switch name {
	case "void":
		return gdk.TypeVoid, nil
	case "bit":
		return gdk.TypeBit, nil
	case "bte":
		return gdk.TypeBte, nil
	case "sht":
		return gdk.TypeSht, nil
	case "int":
		return gdk.TypeInt, nil
	case "oid":
		return gdk.TypeOid, nil
	case "lng":
		return gdk.TypeLng, nil
	case "hge":
		return gdk.TypeHge, nil
	case "flt":
		return gdk.TypeFlt, nil
	case "dbl":
		return gdk.TypeDbl, nil
	case "date":
		return gdk.TypeDate, nil
	case "daytime":
		return gdk.TypeDaytime, nil
	case "timestamp":
		return gdk.TypeTimestamp, nil
	case "uuid":
		return gdk.TypeUUID, nil
	case "str":
		return gdk.TypeStr, nil
	default:
		if n, err := strconv.Atoi(name); err == nil {
			return gdk.Type(n), nil
		}
		return 0, fmt.Errorf("unknown atom type %q", name)
	}
}
