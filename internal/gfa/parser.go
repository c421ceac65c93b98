// Package gfa reads pangenome graphs from GFA files into the graph model.
//
// Only the records inversion calling needs survive parsing: S lines
// contribute segment names and lengths (sequence is measured, never
// stored), P lines and GFA 1.1 W walks contribute signed traversals.
// Headers, links and unknown record types are skipped. Paths may
// reference segments declared later in the file; traversals are resolved
// after the whole file has been read.
package gfa

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pangraphs/invfind/internal/graph"
)

// Lines hold whole segment sequences, which reach chromosome scale in
// practice, so the scanner limit has to be generous.
const (
	initialLineBuf = 1 << 20
	maxLineBuf     = 1 << 30
)

// pathKind distinguishes how a buffered traversal line is decoded.
type pathKind byte

const (
	kindPath pathKind = iota // P line, "seg+,seg-" step list
	kindWalk                 // W line, "><" walk string
)

type pendingPath struct {
	line int
	kind pathKind
	name string
	spec string
}

type parser struct {
	g       *graph.Graph
	pending []pendingPath
}

// ParseFile reads a GFA file from disk.
func ParseFile(path string) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening GFA: %w", err)
	}
	defer f.Close()

	g, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return g, nil
}

// Parse reads GFA records from r and builds the graph.
func Parse(r io.Reader) (*graph.Graph, error) {
	p := &parser{g: graph.New()}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, initialLineBuf), maxLineBuf)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		if len(line) < 2 || line[1] != '\t' {
			continue
		}
		var err error
		switch line[0] {
		case 'S':
			err = p.segment(lineNo, line)
		case 'P':
			err = p.bufferPath(lineNo, line)
		case 'W':
			err = p.bufferWalk(lineNo, line)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading GFA: %w", err)
	}

	for _, pp := range p.pending {
		if err := p.resolve(pp); err != nil {
			return nil, err
		}
	}
	return p.g, nil
}

// segment handles an S record: S <name> <sequence|*> [tags...].
func (p *parser) segment(lineNo int, line string) error {
	fields := strings.Split(line, "\t")
	if len(fields) < 3 {
		return fmt.Errorf("line %d: malformed S record", lineNo)
	}
	name := fields[1]

	length := 0
	if fields[2] == "*" {
		found := false
		for _, tag := range fields[3:] {
			if v, ok := strings.CutPrefix(tag, "LN:i:"); ok {
				n, err := strconv.Atoi(v)
				if err != nil {
					return fmt.Errorf("line %d: bad LN tag on segment %q: %w", lineNo, name, err)
				}
				length = n
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("line %d: segment %q has no sequence and no LN tag", lineNo, name)
		}
	} else {
		length = len(fields[2])
	}
	if length <= 0 {
		return fmt.Errorf("line %d: segment %q has non-positive length %d", lineNo, name, length)
	}

	if _, err := p.g.AddNode(name, length); err != nil {
		return fmt.Errorf("line %d: %w", lineNo, err)
	}
	return nil
}

// bufferPath handles a P record: P <name> <seg+,seg-,...> <overlaps>.
func (p *parser) bufferPath(lineNo int, line string) error {
	fields := strings.Split(line, "\t")
	if len(fields) < 3 {
		return fmt.Errorf("line %d: malformed P record", lineNo)
	}
	p.pending = append(p.pending, pendingPath{
		line: lineNo,
		kind: kindPath,
		name: fields[1],
		spec: fields[2],
	})
	return nil
}

// bufferWalk handles a W record: W <sample> <hap> <seq> <start> <end> <walk>.
// The path is named in PanSN form sample#hap#seq.
func (p *parser) bufferWalk(lineNo int, line string) error {
	fields := strings.Split(line, "\t")
	if len(fields) < 7 {
		return fmt.Errorf("line %d: malformed W record", lineNo)
	}
	p.pending = append(p.pending, pendingPath{
		line: lineNo,
		kind: kindWalk,
		name: fields[1] + "#" + fields[2] + "#" + fields[3],
		spec: fields[6],
	})
	return nil
}

func (p *parser) resolve(pp pendingPath) error {
	var (
		steps []graph.Step
		err   error
	)
	switch pp.kind {
	case kindPath:
		steps, err = p.pathSteps(pp)
	case kindWalk:
		steps, err = p.walkSteps(pp)
	}
	if err != nil {
		return err
	}
	if err := p.g.AddPath(pp.name, steps); err != nil {
		return fmt.Errorf("line %d: %w", pp.line, err)
	}
	return nil
}

func (p *parser) pathSteps(pp pendingPath) ([]graph.Step, error) {
	if pp.spec == "*" || pp.spec == "" {
		return nil, nil
	}
	recs := strings.Split(pp.spec, ",")
	steps := make([]graph.Step, 0, len(recs))
	for _, rec := range recs {
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: malformed step %q in path %q", pp.line, rec, pp.name)
		}
		orient := rec[len(rec)-1]
		if orient != '+' && orient != '-' {
			return nil, fmt.Errorf("line %d: malformed step %q in path %q", pp.line, rec, pp.name)
		}
		id, ok := p.g.NodeID(rec[:len(rec)-1])
		if !ok {
			return nil, fmt.Errorf("line %d: path %q references unknown segment %q", pp.line, pp.name, rec[:len(rec)-1])
		}
		steps = append(steps, graph.Step{Node: id, Reverse: orient == '-'})
	}
	return steps, nil
}

func (p *parser) walkSteps(pp pendingPath) ([]graph.Step, error) {
	if pp.spec == "*" || pp.spec == "" {
		return nil, nil
	}
	var steps []graph.Step
	i := 0
	for i < len(pp.spec) {
		marker := pp.spec[i]
		if marker != '>' && marker != '<' {
			return nil, fmt.Errorf("line %d: malformed walk in %q at offset %d", pp.line, pp.name, i)
		}
		j := i + 1
		for j < len(pp.spec) && pp.spec[j] != '>' && pp.spec[j] != '<' {
			j++
		}
		name := pp.spec[i+1 : j]
		if name == "" {
			return nil, fmt.Errorf("line %d: malformed walk in %q at offset %d", pp.line, pp.name, i)
		}
		id, ok := p.g.NodeID(name)
		if !ok {
			return nil, fmt.Errorf("line %d: walk %q references unknown segment %q", pp.line, pp.name, name)
		}
		steps = append(steps, graph.Step{Node: id, Reverse: marker == '<'})
		i = j
	}
	return steps, nil
}
