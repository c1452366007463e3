package zfs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FakeDataset is one dataset in the in-memory pool.
type FakeDataset struct {
	Type      string // filesystem or volume
	Props     map[string]string
	Snapshots []string // oldest first
}

// FakeRunner is an in-memory stand-in for the zfs tools, used by unit
// tests. Dataset mount points are mirrored as directories under
// MountBase so guest config files behave like they would on a real
// pool. It speaks just enough of the zfs command surface for this
// package, and phrases its errors the way zfs does so tests can assert
// on verbatim diagnostics.
type FakeRunner struct {
	Root      string // root dataset name, e.g. zroot/vm
	MountBase string
	Datasets  map[string]*FakeDataset
	Commands  []string

	// FailCommand makes any command whose rendered argv contains the
	// substring fail with FailOutput.
	FailCommand string
	FailOutput  string
}

// NewFakeRunner builds a pool with just the root dataset, mounted at
// mountBase.
func NewFakeRunner(root, mountBase string) *FakeRunner {
	return &FakeRunner{
		Root:      root,
		MountBase: mountBase,
		Datasets: map[string]*FakeDataset{
			root: {Type: "filesystem", Props: map[string]string{}},
		},
	}
}

// AddDataset registers a dataset by full name and creates its mirror
// directory. Test setup helper.
func (f *FakeRunner) AddDataset(name, dsType string) *FakeDataset {
	ds := &FakeDataset{Type: dsType, Props: map[string]string{}}
	f.Datasets[name] = ds
	if dsType == "filesystem" {
		_ = os.MkdirAll(f.mountDir(name), 0o755)
	}
	return ds
}

func (f *FakeRunner) mountDir(name string) string {
	return filepath.Join(f.MountBase, strings.TrimPrefix(name, f.Root))
}

func (f *FakeRunner) descendants(name string) []string {
	var out []string
	for ds := range f.Datasets {
		if strings.HasPrefix(ds, name+"/") {
			out = append(out, ds)
		}
	}
	sort.Strings(out)
	return out
}

func (f *FakeRunner) errf(cmd, format string, a ...any) error {
	return &CommandError{
		Command: cmd,
		Output:  fmt.Sprintf(format, a...),
		Err:     errors.New("exit status 1"),
	}
}

func (f *FakeRunner) LookPath(string) error { return nil }

func (f *FakeRunner) record(name string, args []string) (string, error) {
	cmd := renderCommand(name, args)
	f.Commands = append(f.Commands, cmd)
	if f.FailCommand != "" && strings.Contains(cmd, f.FailCommand) {
		return cmd, f.errf(cmd, "%s", f.FailOutput)
	}
	return cmd, nil
}

func (f *FakeRunner) Run(name string, args ...string) ([]byte, error) {
	cmd, err := f.record(name, args)
	if err != nil {
		return []byte(f.FailOutput), err
	}
	if name != "zfs" || len(args) == 0 {
		return nil, f.errf(cmd, "fake runner: unsupported command %q", cmd)
	}
	switch args[0] {
	case "get":
		return f.get(cmd, args[1:])
	case "set":
		return f.set(cmd, args[1:])
	case "list":
		return f.list(cmd, args[1:])
	case "create":
		return nil, f.create(cmd, args[1:])
	case "destroy":
		return nil, f.destroy(cmd, args[1:])
	case "snapshot":
		return nil, f.snapshot(cmd, args[1:])
	case "rollback":
		return nil, f.rollback(cmd, args[1:])
	case "rename":
		return nil, f.rename(cmd, args[1:])
	case "clone":
		return nil, f.clone(cmd, args[1:])
	}
	return nil, f.errf(cmd, "fake runner: unsupported zfs subcommand %q", args[0])
}

func (f *FakeRunner) get(cmd string, args []string) ([]byte, error) {
	// zfs get -H -o value <key> <target>
	if len(args) < 2 {
		return nil, f.errf(cmd, "fake runner: malformed get")
	}
	key, target := args[len(args)-2], args[len(args)-1]
	if dsName, label, ok := strings.Cut(target, "@"); ok {
		ds := f.Datasets[dsName]
		if ds == nil || !contains(ds.Snapshots, label) {
			return nil, f.errf(cmd, "cannot open '%s': dataset does not exist", target)
		}
		if key == "name" {
			return []byte(target + "\n"), nil
		}
		return []byte("-\n"), nil
	}
	ds := f.Datasets[target]
	if ds == nil {
		return nil, f.errf(cmd, "cannot open '%s': dataset does not exist", target)
	}
	switch key {
	case "name":
		return []byte(target + "\n"), nil
	case "type":
		return []byte(ds.Type + "\n"), nil
	case "mountpoint":
		if mp, ok := ds.Props["mountpoint"]; ok {
			return []byte(mp + "\n"), nil
		}
		if ds.Type == "volume" {
			return []byte("-\n"), nil
		}
		return []byte(f.mountDir(target) + "\n"), nil
	}
	if v, ok := ds.Props[key]; ok {
		return []byte(v + "\n"), nil
	}
	return []byte("-\n"), nil
}

func (f *FakeRunner) set(cmd string, args []string) ([]byte, error) {
	if len(args) != 2 {
		return nil, f.errf(cmd, "fake runner: malformed set")
	}
	ds := f.Datasets[args[1]]
	if ds == nil {
		return nil, f.errf(cmd, "cannot open '%s': dataset does not exist", args[1])
	}
	if k, v, ok := strings.Cut(args[0], "="); ok {
		ds.Props[k] = v
	}
	return nil, nil
}

func (f *FakeRunner) list(cmd string, args []string) ([]byte, error) {
	var types, target string
	recursive, depthOne := false, false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-t":
			i++
			types = args[i]
		case "-r":
			recursive = true
		case "-d":
			i++
			depthOne = args[i] == "1"
		case "-H", "-o":
			if args[i] == "-o" {
				i++
			}
		default:
			target = args[i]
		}
	}
	ds := f.Datasets[target]
	if ds == nil {
		return nil, f.errf(cmd, "cannot open '%s': dataset does not exist", target)
	}
	var lines []string
	if strings.Contains(types, "snapshot") {
		if depthOne || recursive {
			for _, label := range ds.Snapshots {
				lines = append(lines, target+"@"+label)
			}
		}
	} else {
		lines = append(lines, target)
		if recursive {
			lines = append(lines, f.descendants(target)...)
		}
	}
	return []byte(strings.Join(lines, "\n") + "\n"), nil
}

func (f *FakeRunner) create(cmd string, args []string) error {
	dsType := "filesystem"
	name := args[len(args)-1]
	for i := 0; i < len(args)-1; i++ {
		switch args[i] {
		case "-V", "-sV":
			dsType = "volume"
			i++
		case "-o":
			i++
		}
	}
	if f.Datasets[name] != nil {
		return f.errf(cmd, "cannot create '%s': dataset already exists", name)
	}
	f.AddDataset(name, dsType)
	return nil
}

func (f *FakeRunner) destroy(cmd string, args []string) error {
	target := args[len(args)-1]
	recursive := contains(args, "-r") || contains(args, "-rf")
	if dsName, label, ok := strings.Cut(target, "@"); ok {
		ds := f.Datasets[dsName]
		if ds == nil || !contains(ds.Snapshots, label) {
			return f.errf(cmd, "could not find any snapshots to destroy; check snapshot names.")
		}
		ds.Snapshots = remove(ds.Snapshots, label)
		if recursive {
			for _, child := range f.descendants(dsName) {
				f.Datasets[child].Snapshots = remove(f.Datasets[child].Snapshots, label)
			}
		}
		return nil
	}
	ds := f.Datasets[target]
	if ds == nil {
		return f.errf(cmd, "cannot open '%s': dataset does not exist", target)
	}
	for _, child := range f.descendants(target) {
		delete(f.Datasets, child)
	}
	delete(f.Datasets, target)
	_ = os.RemoveAll(f.mountDir(target))
	return nil
}

func (f *FakeRunner) snapshot(cmd string, args []string) error {
	recursive := contains(args, "-r")
	target := args[len(args)-1]
	dsName, label, ok := strings.Cut(target, "@")
	if !ok {
		return f.errf(cmd, "fake runner: malformed snapshot %q", target)
	}
	ds := f.Datasets[dsName]
	if ds == nil {
		return f.errf(cmd, "cannot open '%s': dataset does not exist", dsName)
	}
	if contains(ds.Snapshots, label) {
		return f.errf(cmd, "cannot create snapshot '%s': dataset already exists", target)
	}
	ds.Snapshots = append(ds.Snapshots, label)
	if recursive {
		for _, child := range f.descendants(dsName) {
			cds := f.Datasets[child]
			if !contains(cds.Snapshots, label) {
				cds.Snapshots = append(cds.Snapshots, label)
			}
		}
	}
	return nil
}

func (f *FakeRunner) rollback(cmd string, args []string) error {
	destroyNewer := contains(args, "-r")
	target := args[len(args)-1]
	dsName, label, _ := strings.Cut(target, "@")
	ds := f.Datasets[dsName]
	if ds == nil || !contains(ds.Snapshots, label) {
		return f.errf(cmd, "cannot open '%s': dataset does not exist", target)
	}
	idx := index(ds.Snapshots, label)
	newer := ds.Snapshots[idx+1:]
	if len(newer) > 0 && !destroyNewer {
		var names []string
		for _, l := range newer {
			names = append(names, dsName+"@"+l)
		}
		return f.errf(cmd, "cannot rollback to '%s': more recent snapshots or bookmarks exist\nuse '-r' to force deletion of the following snapshots and bookmarks:\n%s",
			target, strings.Join(names, "\n"))
	}
	ds.Snapshots = ds.Snapshots[:idx+1]
	return nil
}

func (f *FakeRunner) rename(cmd string, args []string) error {
	if len(args) != 2 {
		return f.errf(cmd, "fake runner: malformed rename")
	}
	oldName, newName := args[0], args[1]
	ds := f.Datasets[oldName]
	if ds == nil {
		return f.errf(cmd, "cannot open '%s': dataset does not exist", oldName)
	}
	if f.Datasets[newName] != nil {
		return f.errf(cmd, "cannot rename '%s': dataset already exists", oldName)
	}
	for _, child := range f.descendants(oldName) {
		f.Datasets[newName+strings.TrimPrefix(child, oldName)] = f.Datasets[child]
		delete(f.Datasets, child)
	}
	f.Datasets[newName] = ds
	delete(f.Datasets, oldName)
	_ = os.Rename(f.mountDir(oldName), f.mountDir(newName))
	return nil
}

func (f *FakeRunner) clone(cmd string, args []string) error {
	src, dst := args[len(args)-2], args[len(args)-1]
	srcName, label, ok := strings.Cut(src, "@")
	if !ok {
		return f.errf(cmd, "fake runner: malformed clone source %q", src)
	}
	srcDS := f.Datasets[srcName]
	if srcDS == nil || !contains(srcDS.Snapshots, label) {
		return f.errf(cmd, "cannot open '%s': dataset does not exist", src)
	}
	if f.Datasets[dst] != nil {
		return f.errf(cmd, "cannot create '%s': dataset already exists", dst)
	}
	f.AddDataset(dst, srcDS.Type)
	if srcDS.Type == "filesystem" {
		if err := copyFiles(f.mountDir(srcName), f.mountDir(dst)); err != nil {
			return f.errf(cmd, "fake runner: clone copy: %v", err)
		}
	}
	return nil
}

// fakeStream is the wire form of the fake's zfs send output.
type fakeStream struct {
	Dataset  string            `json:"dataset"`
	Label    string            `json:"label"`
	Children map[string]string `json:"children"` // relative name -> type
	Files    map[string][]byte `json:"files"`    // relative path -> content
}

func (f *FakeRunner) RunWithOutput(w io.Writer, name string, args ...string) error {
	cmd, err := f.record(name, args)
	if err != nil {
		return err
	}
	if name != "zfs" || len(args) == 0 || args[0] != "send" {
		return f.errf(cmd, "fake runner: unsupported streaming command %q", cmd)
	}
	target := args[len(args)-1]
	dsName, label, _ := strings.Cut(target, "@")
	ds := f.Datasets[dsName]
	if ds == nil || !contains(ds.Snapshots, label) {
		return f.errf(cmd, "cannot open '%s': dataset does not exist", target)
	}
	stream := fakeStream{
		Dataset:  dsName,
		Label:    label,
		Children: map[string]string{},
		Files:    map[string][]byte{},
	}
	for _, child := range f.descendants(dsName) {
		stream.Children[strings.TrimPrefix(child, dsName+"/")] = f.Datasets[child].Type
	}
	base := f.mountDir(dsName)
	walkErr := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(base, path)
		stream.Files[rel] = data
		return nil
	})
	if walkErr != nil {
		return f.errf(cmd, "fake runner: send walk: %v", walkErr)
	}
	return json.NewEncoder(w).Encode(stream)
}

func (f *FakeRunner) RunWithInput(r io.Reader, name string, args ...string) error {
	cmd, err := f.record(name, args)
	if err != nil {
		return err
	}
	if name != "zfs" || len(args) == 0 || args[0] != "receive" {
		return f.errf(cmd, "fake runner: unsupported streaming command %q", cmd)
	}
	dst := args[len(args)-1]
	if f.Datasets[dst] != nil {
		return f.errf(cmd, "cannot receive new filesystem stream: destination '%s' exists", dst)
	}
	var stream fakeStream
	if err := json.NewDecoder(r).Decode(&stream); err != nil {
		return f.errf(cmd, "cannot receive: invalid backup stream")
	}
	root := f.AddDataset(dst, "filesystem")
	root.Snapshots = []string{stream.Label}
	for rel, dsType := range stream.Children {
		child := f.AddDataset(dst+"/"+rel, dsType)
		child.Snapshots = []string{stream.Label}
	}
	base := f.mountDir(dst)
	for rel, data := range stream.Files {
		path := filepath.Join(base, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return f.errf(cmd, "fake runner: receive: %v", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return f.errf(cmd, "fake runner: receive: %v", err)
		}
	}
	return nil
}

func copyFiles(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(src, path)
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func index(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
