// Command tabula inspects a tabula data file: its layout, row count, and
// individual rows by identifier.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/tabuladb/tabula"
)

func xcheckf(err error, format string, args ...any) {
	if err != nil {
		msg := fmt.Sprintf(format, args...)
		log.Fatalf("%s: %s", msg, err)
	}
}

func usage() {
	log.Println("usage: tabula layout file.dat")
	log.Println("       tabula count file.dat")
	log.Println("       tabula get file.dat id")
	log.Println("       tabula dump file.dat")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	default:
		usage()
	case "layout":
		layoutCmd(args)
	case "count":
		countCmd(args)
	case "get":
		getCmd(args)
	case "dump":
		dumpCmd(args)
	}
}

// xopenExisting opens path's data file against a Layout probed from the
// file's own header, so that inspection tools which don't know the
// caller's struct can still open and read the file.
func xopenExisting(path string) *tabula.DatTable {
	_, err := os.Stat(path)
	xcheckf(err, "stat")
	probe, err := tabula.ProbeLayout(path)
	xcheckf(err, "probe layout")
	dt, err := tabula.OpenDatTable(path, probe, &tabula.Options{MustExist: true})
	xcheckf(err, "open data file")
	return dt
}

func layoutCmd(args []string) {
	if len(args) != 1 {
		usage()
	}
	dt := xopenExisting(args[0])
	defer dt.Close()
	l := dt.Layout()
	fmt.Printf("%s (%d fields)\n", l.Name, l.FieldCount())
	for _, f := range l.Fields {
		fmt.Printf("  %-20s %-10s flags=%v nullable=%v\n", f.Name, f.DataType, f.Flags, f.IsNullable)
	}
}

func countCmd(args []string) {
	if len(args) != 1 {
		usage()
	}
	dt := xopenExisting(args[0])
	defer dt.Close()
	fmt.Println(dt.RowCount())
}

func getCmd(args []string) {
	if len(args) != 2 {
		usage()
	}
	dt := xopenExisting(args[0])
	defer dt.Close()
	id, err := strconv.ParseInt(args[1], 10, 64)
	xcheckf(err, "parsing id")
	row, err := dt.GetRow(id)
	xcheckf(err, "get row")
	printRow(dt.Layout(), row)
}

func dumpCmd(args []string) {
	if len(args) != 1 {
		usage()
	}
	dt := xopenExisting(args[0])
	defer dt.Close()
	rows, err := dt.GetRows()
	xcheckf(err, "get rows")
	for _, row := range rows {
		printRow(dt.Layout(), row)
	}
}

func printRow(l *tabula.Layout, row tabula.Row) {
	m := map[string]any{}
	for i, f := range l.Fields {
		m[f.Name] = row.Get(i).Interface()
	}
	buf, err := json.Marshal(m)
	xcheckf(err, "marshal row")
	fmt.Println(string(buf))
}
