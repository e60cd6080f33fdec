/*
 * archive.go, part of goQMC.
 *
 * Copyright 2024 Raul Mera <rauldotmeraatusachdotcl>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package archive

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const magic = "QTA 1\n"

const (
	kindGroup = 'G'
	kindAttr  = 'A'
	kindData  = 'D'

	typeInt    = 'i'
	typeFloat  = 'f'
	typeString = 's'

	codecNone = 'n'
	codecZstd = 'z'
)

type dsinfo struct {
	dtype byte
	rows  int64
	cols  int
}

//Writer is a qta file opened for writing.
type Writer struct {
	f         *os.File
	h         *bufio.Writer
	enc       *zstd.Encoder
	filename  string
	writeable bool
	stack     []string
	groups    map[string]bool
	datasets  map[string]*dsinfo
	scratch   []byte
}

//NewWriter creates a new qta file. The key=value pairs in header, if given, are written as
//string attributes of the root group. A compression level of 0 disables compression;
//otherwise the level follows the z-standard numbering (1 to 22, default 3).
//Only the first level given is considered.
func NewWriter(name string, header map[string]string, compressionLevel ...int) (*Writer, error) {
	W, err := newWriter(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, compressionLevel...)
	if err != nil {
		return nil, errDecorate(err, "NewWriter")
	}
	if _, err := W.h.WriteString(magic); err != nil {
		W.f.Close()
		return nil, Error{err.Error(), name, []string{"NewWriter"}, true}
	}
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := W.WriteString(k, header[k]); err != nil {
			W.f.Close()
			return nil, errDecorate(err, "NewWriter")
		}
	}
	return W, nil
}

//OpenAppend opens an existing qta file so more data can be appended to it. The
//groups and datasets already in the file are known to the writer, so appending to
//an existing dataset requires a cursor equal to its current number of rows.
func OpenAppend(name string, compressionLevel ...int) (*Writer, error) {
	R, err := Open(name)
	if err != nil {
		return nil, errDecorate(err, "OpenAppend")
	}
	W, err := newWriter(name, os.O_APPEND|os.O_WRONLY, compressionLevel...)
	if err != nil {
		return nil, errDecorate(err, "OpenAppend")
	}
	for g := range R.groups {
		W.groups[g] = true
	}
	for p, d := range R.datasets {
		W.datasets[p] = &dsinfo{dtype: d.dtype, rows: int64(d.Rows), cols: d.Cols}
	}
	return W, nil
}

func newWriter(name string, flags int, compressionLevel ...int) (*Writer, error) {
	level := 3
	if len(compressionLevel) > 0 {
		level = compressionLevel[0]
	}
	W := new(Writer)
	var err error
	W.filename = name
	W.f, err = os.OpenFile(name, flags, 0o644)
	if err != nil {
		return nil, Error{UnableToOpen + ": " + err.Error(), name, []string{"newWriter"}, true}
	}
	if level > 0 {
		W.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			W.f.Close()
			return nil, Error{"Can't create compressor " + err.Error(), name, []string{"newWriter"}, true}
		}
	}
	W.h = bufio.NewWriter(W.f)
	W.groups = map[string]bool{"/": true}
	W.datasets = make(map[string]*dsinfo)
	W.writeable = true
	return W, nil
}

//FileName returns the name of the file being written.
func (W *Writer) FileName() string {
	return W.filename
}

//Top returns the absolute path of the current group.
func (W *Writer) Top() string {
	return "/" + strings.Join(W.stack, "/")
}

//OpenGroups returns the number of groups pushed and not yet popped.
func (W *Writer) OpenGroups() int {
	return len(W.stack)
}

func (W *Writer) child(name string) string {
	if len(W.stack) == 0 {
		return "/" + name
	}
	return W.Top() + "/" + name
}

func checkName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%s: %q", InvalidName, name)
	}
	return nil
}

//Push opens the group name, as a child of the current group, creating it if needed.
func (W *Writer) Push(name string) error {
	if !W.writeable {
		return Error{UnIniWrite, W.filename, []string{"Push"}, true}
	}
	if err := checkName(name); err != nil {
		return Error{err.Error(), W.filename, []string{"Push"}, true}
	}
	p := W.child(name)
	if _, ok := W.datasets[p]; ok {
		return Error{"A dataset already exists with the path " + p, W.filename, []string{"Push"}, true}
	}
	if !W.groups[p] {
		if err := W.record(kindGroup, p); err != nil {
			return errDecorate(err, "Push")
		}
		W.groups[p] = true
	}
	W.stack = append(W.stack, name)
	return nil
}

//Pop closes the current group.
func (W *Writer) Pop() error {
	if len(W.stack) == 0 {
		return Error{"No group to pop", W.filename, []string{"Pop"}, true}
	}
	W.stack = W.stack[:len(W.stack)-1]
	return nil
}

//WriteInts writes an int64 attribute under the current group.
func (W *Writer) WriteInts(name string, v ...int64) error {
	b := W.scratch[:0]
	for _, i := range v {
		b = binary.LittleEndian.AppendUint64(b, uint64(i))
	}
	W.scratch = b
	return errDecorate(W.attr(name, typeInt, len(v), b), "WriteInts")
}

//WriteFloats writes a float64 attribute under the current group.
func (W *Writer) WriteFloats(name string, v ...float64) error {
	b := W.scratch[:0]
	for _, f := range v {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(f))
	}
	W.scratch = b
	return errDecorate(W.attr(name, typeFloat, len(v), b), "WriteFloats")
}

//WriteString writes a string attribute under the current group.
func (W *Writer) WriteString(name string, s string) error {
	return errDecorate(W.attr(name, typeString, len(s), []byte(s)), "WriteString")
}

func (W *Writer) attr(name string, dtype byte, n int, payload []byte) error {
	if !W.writeable {
		return Error{UnIniWrite, W.filename, []string{"attr"}, true}
	}
	if err := checkName(name); err != nil {
		return Error{err.Error(), W.filename, []string{"attr"}, true}
	}
	p := W.child(name)
	if err := W.record(kindAttr, p); err != nil {
		return err
	}
	var hdr [5]byte
	hdr[0] = dtype
	binary.LittleEndian.PutUint32(hdr[1:], uint32(n))
	if _, err := W.h.Write(hdr[:]); err != nil {
		return Error{err.Error(), W.filename, []string{"attr"}, true}
	}
	if _, err := W.h.Write(payload); err != nil {
		return Error{err.Error(), W.filename, []string{"attr"}, true}
	}
	return nil
}

//AppendInts appends the rows in data (row-major, cols columns) to the int64 dataset name
//under the current group, starting at row *cursor, and advances the cursor.
func (W *Writer) AppendInts(name string, cursor *int64, cols int, data []int64) error {
	b := W.scratch[:0]
	for _, i := range data {
		b = binary.LittleEndian.AppendUint64(b, uint64(i))
	}
	W.scratch = b
	return errDecorate(W.appendData(name, typeInt, cursor, cols, len(data), b), "AppendInts")
}

//AppendFloats is the float64 version of AppendInts.
func (W *Writer) AppendFloats(name string, cursor *int64, cols int, data []float64) error {
	b := W.scratch[:0]
	for _, f := range data {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(f))
	}
	W.scratch = b
	return errDecorate(W.appendData(name, typeFloat, cursor, cols, len(data), b), "AppendFloats")
}

func (W *Writer) appendData(name string, dtype byte, cursor *int64, cols, n int, raw []byte) error {
	if !W.writeable {
		return Error{UnIniWrite, W.filename, []string{"appendData"}, true}
	}
	if err := checkName(name); err != nil {
		return Error{err.Error(), W.filename, []string{"appendData"}, true}
	}
	if cols <= 0 || n%cols != 0 {
		return Error{fmt.Sprintf("%d values can't be split in rows of %d columns", n, cols), W.filename, []string{"appendData"}, true}
	}
	rows := int64(n / cols)
	p := W.child(name)
	if W.groups[p] {
		return Error{"A group already exists with the path " + p, W.filename, []string{"appendData"}, true}
	}
	ds, ok := W.datasets[p]
	if !ok {
		ds = &dsinfo{dtype: dtype, cols: cols}
	}
	if ds.dtype != dtype || ds.cols != cols {
		return Error{fmt.Sprintf("%s: dataset %s has type %c and %d columns, got type %c and %d columns", ShapeMismatch, p, ds.dtype, ds.cols, dtype, cols), W.filename, []string{"appendData"}, true}
	}
	if *cursor != ds.rows {
		return Error{fmt.Sprintf("%s: dataset %s has %d rows, cursor is at %d", NonContiguous, p, ds.rows, *cursor), W.filename, []string{"appendData"}, true}
	}
	codec := byte(codecNone)
	payload := raw
	if W.enc != nil {
		codec = codecZstd
		payload = W.enc.EncodeAll(raw, nil)
	}
	if err := W.record(kindData, p); err != nil {
		return err
	}
	var hdr [2 + 4*8]byte
	hdr[0] = dtype
	hdr[1] = codec
	binary.LittleEndian.PutUint64(hdr[2:], uint64(ds.rows))
	binary.LittleEndian.PutUint64(hdr[10:], uint64(rows))
	binary.LittleEndian.PutUint64(hdr[18:], uint64(cols))
	binary.LittleEndian.PutUint64(hdr[26:], uint64(len(payload)))
	if _, err := W.h.Write(hdr[:]); err != nil {
		return Error{err.Error(), W.filename, []string{"appendData"}, true}
	}
	if _, err := W.h.Write(payload); err != nil {
		return Error{err.Error(), W.filename, []string{"appendData"}, true}
	}
	ds.rows += rows
	W.datasets[p] = ds
	*cursor += rows
	return nil
}

func (W *Writer) record(kind byte, path string) error {
	if len(path) > math.MaxUint16 {
		return Error{InvalidName + ": path too long", W.filename, []string{"record"}, true}
	}
	var hdr [3]byte
	hdr[0] = kind
	binary.LittleEndian.PutUint16(hdr[1:], uint16(len(path)))
	if _, err := W.h.Write(hdr[:]); err != nil {
		return Error{err.Error(), W.filename, []string{"record"}, true}
	}
	if _, err := W.h.WriteString(path); err != nil {
		return Error{err.Error(), W.filename, []string{"record"}, true}
	}
	return nil
}

//Rows returns the number of rows already written to the dataset with the absolute path p,
//or 0 if the dataset doesn't exist.
func (W *Writer) Rows(p string) int64 {
	if ds, ok := W.datasets[p]; ok {
		return ds.rows
	}
	return 0
}

//Flush writes the buffered records to the file.
func (W *Writer) Flush() error {
	if !W.writeable {
		return nil
	}
	if err := W.h.Flush(); err != nil {
		return Error{err.Error(), W.filename, []string{"Flush"}, true}
	}
	return nil
}

//Close flushes and closes the file. The writer can not be used after this call.
func (W *Writer) Close() error {
	if W == nil || !W.writeable {
		return nil
	}
	W.writeable = false
	if len(W.stack) > 0 {
		slog.Debug("closing qta file with open groups", "file", W.filename, "top", W.Top())
	}
	err := W.h.Flush()
	if W.enc != nil {
		W.enc.Close()
	}
	if err2 := W.f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		return Error{err.Error(), W.filename, []string{"Close"}, true}
	}
	return nil
}

//Read!

//Attr is an attribute read from a qta file. Only the field corresponding to Type is set.
type Attr struct {
	Type   byte
	Ints   []int64
	Floats []float64
	Str    string
}

//Dataset is a 2D dataset read from a qta file.
type Dataset struct {
	Path   string
	Rows   int
	Cols   int
	dtype  byte
	ints   []int64
	floats []float64
}

//IsFloat returns true if the dataset holds float64 values.
func (D *Dataset) IsFloat() bool { return D.dtype == typeFloat }

//Ints returns the row-major int64 data, or nil for float datasets.
func (D *Dataset) Ints() []int64 { return D.ints }

//Floats returns the row-major float64 data, or nil for int datasets.
func (D *Dataset) Floats() []float64 { return D.floats }

//Row returns a copy of the i-th row, converted to float64 if needed.
func (D *Dataset) Row(i int) []float64 {
	ret := make([]float64, D.Cols)
	for j := range ret {
		if D.dtype == typeFloat {
			ret[j] = D.floats[i*D.Cols+j]
		} else {
			ret[j] = float64(D.ints[i*D.Cols+j])
		}
	}
	return ret
}

//Reader holds the whole content of a qta file.
type Reader struct {
	filename string
	groups   map[string]bool
	attrs    map[string]*Attr
	datasets map[string]*Dataset
}

//Open reads the qta file name.
func Open(name string) (*Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, Error{UnableToOpen + ": " + err.Error(), name, []string{"Open"}, true}
	}
	defer f.Close()
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, Error{"Can't create decompressor " + err.Error(), name, []string{"Open"}, true}
	}
	defer dec.Close()
	R := &Reader{
		filename: name,
		groups:   map[string]bool{"/": true},
		attrs:    make(map[string]*Attr),
		datasets: make(map[string]*Dataset),
	}
	h := bufio.NewReader(f)
	m := make([]byte, len(magic))
	if _, err := io.ReadFull(h, m); err != nil || string(m) != magic {
		return nil, Error{WrongFormat + ": bad magic", name, []string{"Open"}, true}
	}
	for {
		err := R.readRecord(h, dec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, Error{WrongFormat + ": " + err.Error(), name, []string{"Open"}, true}
		}
	}
	return R, nil
}

func (R *Reader) readRecord(h *bufio.Reader, dec *zstd.Decoder) error {
	var hdr [3]byte
	if _, err := io.ReadFull(h, hdr[:1]); err != nil {
		return err //a clean EOF is only possible here
	}
	if _, err := io.ReadFull(h, hdr[1:]); err != nil {
		return unexpected(err)
	}
	p := make([]byte, binary.LittleEndian.Uint16(hdr[1:]))
	if _, err := io.ReadFull(h, p); err != nil {
		return unexpected(err)
	}
	path := string(p)
	R.addParents(path)
	switch hdr[0] {
	case kindGroup:
		R.groups[path] = true
	case kindAttr:
		return R.readAttr(h, path)
	case kindData:
		return R.readData(h, dec, path)
	default:
		return fmt.Errorf("unknown record kind %q", hdr[0])
	}
	return nil
}

func (R *Reader) addParents(path string) {
	for i := len(path) - 1; i > 0; i-- {
		if path[i] == '/' {
			R.groups[path[:i]] = true
		}
	}
}

func (R *Reader) readAttr(h *bufio.Reader, path string) error {
	var hdr [5]byte
	if _, err := io.ReadFull(h, hdr[:]); err != nil {
		return unexpected(err)
	}
	n := int(binary.LittleEndian.Uint32(hdr[1:]))
	a := &Attr{Type: hdr[0]}
	size := n * 8
	if a.Type == typeString {
		size = n
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(h, b); err != nil {
		return unexpected(err)
	}
	switch a.Type {
	case typeString:
		a.Str = string(b)
	case typeInt:
		a.Ints = make([]int64, n)
		for i := range a.Ints {
			a.Ints[i] = int64(binary.LittleEndian.Uint64(b[8*i:]))
		}
	case typeFloat:
		a.Floats = make([]float64, n)
		for i := range a.Floats {
			a.Floats[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
		}
	default:
		return fmt.Errorf("unknown attribute type %q in %s", a.Type, path)
	}
	R.attrs[path] = a
	return nil
}

func (R *Reader) readData(h *bufio.Reader, dec *zstd.Decoder, path string) error {
	var hdr [2 + 4*8]byte
	if _, err := io.ReadFull(h, hdr[:]); err != nil {
		return unexpected(err)
	}
	dtype, codec := hdr[0], hdr[1]
	start := binary.LittleEndian.Uint64(hdr[2:])
	rows := int(binary.LittleEndian.Uint64(hdr[10:]))
	cols := int(binary.LittleEndian.Uint64(hdr[18:]))
	clen := binary.LittleEndian.Uint64(hdr[26:])
	payload := make([]byte, clen)
	if _, err := io.ReadFull(h, payload); err != nil {
		return unexpected(err)
	}
	var raw []byte
	var err error
	switch codec {
	case codecNone:
		raw = payload
	case codecZstd:
		raw, err = dec.DecodeAll(payload, make([]byte, 0, rows*cols*8))
		if err != nil {
			return fmt.Errorf("can't decompress chunk of %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unknown codec %q in %s", codec, path)
	}
	if len(raw) != rows*cols*8 {
		return fmt.Errorf("chunk of %s has %d bytes, expected %d", path, len(raw), rows*cols*8)
	}
	ds, ok := R.datasets[path]
	if !ok {
		ds = &Dataset{Path: path, Cols: cols, dtype: dtype}
		R.datasets[path] = ds
	}
	if ds.dtype != dtype || ds.Cols != cols {
		return fmt.Errorf("%s: chunk of %s has type %c and %d columns, dataset has %c and %d", ShapeMismatch, path, dtype, cols, ds.dtype, ds.Cols)
	}
	if int(start) != ds.Rows {
		return fmt.Errorf("%s: chunk of %s starts at row %d, dataset has %d rows", NonContiguous, path, start, ds.Rows)
	}
	for i := 0; i < rows*cols; i++ {
		u := binary.LittleEndian.Uint64(raw[8*i:])
		if dtype == typeFloat {
			ds.floats = append(ds.floats, math.Float64frombits(u))
		} else {
			ds.ints = append(ds.ints, int64(u))
		}
	}
	ds.Rows += rows
	return nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

//FileName returns the name of the file read.
func (R *Reader) FileName() string {
	return R.filename
}

//Header returns the string attributes of the root group.
func (R *Reader) Header() map[string]string {
	ret := make(map[string]string)
	for p, a := range R.attrs {
		if a.Type == typeString && strings.LastIndex(p, "/") == 0 {
			ret[p[1:]] = a.Str
		}
	}
	return ret
}

//HasGroup returns true if the group with absolute path p exists.
func (R *Reader) HasGroup(p string) bool {
	return R.groups[clean(p)]
}

//Children returns the sorted names of the groups, attributes and datasets directly under the group p.
func (R *Reader) Children(p string) []string {
	p = clean(p)
	prefix := p + "/"
	if p == "/" {
		prefix = "/"
	}
	set := make(map[string]bool)
	add := func(path string) {
		if path == p || !strings.HasPrefix(path, prefix) {
			return
		}
		rest := path[len(prefix):]
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i]
		}
		set[rest] = true
	}
	for g := range R.groups {
		add(g)
	}
	for a := range R.attrs {
		add(a)
	}
	for d := range R.datasets {
		add(d)
	}
	ret := make([]string, 0, len(set))
	for k := range set {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

//Attr returns the attribute with absolute path p.
func (R *Reader) Attr(p string) (*Attr, error) {
	a, ok := R.attrs[clean(p)]
	if !ok {
		return nil, Error{NotFound + ": " + p, R.filename, []string{"Attr"}, false}
	}
	return a, nil
}

//Ints returns the int64 attribute with absolute path p.
func (R *Reader) Ints(p string) ([]int64, error) {
	a, err := R.Attr(p)
	if err != nil {
		return nil, errDecorate(err, "Ints")
	}
	if a.Type != typeInt {
		return nil, Error{fmt.Sprintf("attribute %s is not an integer attribute", p), R.filename, []string{"Ints"}, true}
	}
	return a.Ints, nil
}

//Floats returns the float64 attribute with absolute path p.
func (R *Reader) Floats(p string) ([]float64, error) {
	a, err := R.Attr(p)
	if err != nil {
		return nil, errDecorate(err, "Floats")
	}
	if a.Type != typeFloat {
		return nil, Error{fmt.Sprintf("attribute %s is not a float attribute", p), R.filename, []string{"Floats"}, true}
	}
	return a.Floats, nil
}

//Dataset returns the dataset with absolute path p.
func (R *Reader) Dataset(p string) (*Dataset, error) {
	d, ok := R.datasets[clean(p)]
	if !ok {
		return nil, Error{NotFound + ": " + p, R.filename, []string{"Dataset"}, false}
	}
	return d, nil
}

//Datasets returns the sorted absolute paths of all the datasets in the file.
func (R *Reader) Datasets() []string {
	ret := make([]string, 0, len(R.datasets))
	for p := range R.datasets {
		ret = append(ret, p)
	}
	sort.Strings(ret)
	return ret
}

func clean(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

//Errors

//errDecorate is a helper function that asserts that the error is
//implements qmc.Error and decorates the error with the caller's name before returning it.
//nil errors are returned as they are.
func errDecorate(err error, caller string) error {
	if err == nil {
		return nil
	}
	if err2, ok := err.(Error); ok {
		err2.deco = append(err2.deco, caller)
		return err2
	}
	return err
}

//Error is the general structure for qta errors. It fullfills qmc.Error and qmc.CriticalError
type Error struct {
	message  string
	filename string //the file that has problems, or empty string if none.
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("qta file %s error: %s", err.filename, err.message)
}

//Decorate Adds new information to the error
func (E Error) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

//FileName returns the file to which the failing operation was associated
func (err Error) FileName() string { return err.filename }

//Format returns the format of the file (always "qta") associated to the error
func (err Error) Format() string { return "qta" }

//Critical returns true if the error is critical, false otherwise
func (err Error) Critical() bool { return err.critical }

const (
	UnIniWrite    = "qta object uninitialized to write"
	UnableToOpen  = "Unable to open file"
	WrongFormat   = "Wrong format in the qta file"
	InvalidName   = "Invalid group, attribute or dataset name"
	ShapeMismatch = "Type or column count mismatch"
	NonContiguous = "Non-contiguous append"
	NotFound      = "Not found"
)
