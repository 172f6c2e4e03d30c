package gbt

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/models/tree"

	"github.com/rmera/boo"
	"github.com/rmera/boo/utils"
)

// decodeTrees reads the line format written by boo.JSONMultiClass: a
// metadata line, then "ROUND r" and "CLASS k, label: L" headers, each class
// followed by its nodes in pre-order. Leaf values are multiplied by the
// learning rate, and negated for trees of classes other than positive.
func decodeTrees(dump string, positive int) ([]*tree.Tree, error) {
	sc := bufio.NewScanner(strings.NewReader(dump))
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	if !sc.Scan() {
		return nil, fmt.Errorf("empty model dump")
	}
	var meta boo.JSONMetaData
	if err := json.Unmarshal(sc.Bytes(), &meta); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	if meta.LearningRate <= 0 {
		return nil, fmt.Errorf("metadata: learning rate %v", meta.LearningRate)
	}

	var (
		trees []*tree.Tree
		nodes []utils.JSONNode
		open  bool
		scale float64
	)
	round := -1
	flush := func() error {
		if !open {
			return nil
		}
		open = false
		t, err := buildTree(nodes, scale)
		if err != nil {
			return fmt.Errorf("round %d tree %d: %w", round, len(trees), err)
		}
		trees = append(trees, t)
		nodes = nodes[:0]
		return nil
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "ROUND"):
			if err := flush(); err != nil {
				return nil, err
			}
			round++
		case strings.HasPrefix(line, "CLASS"):
			if err := flush(); err != nil {
				return nil, err
			}
			var class, label int
			if _, err := fmt.Sscanf(line, "CLASS %d, label: %d", &class, &label); err != nil {
				return nil, fmt.Errorf("class header %q: %w", line, err)
			}
			scale = -meta.LearningRate
			if label == positive {
				scale = meta.LearningRate
			}
			open = true
		default:
			if !open {
				return nil, fmt.Errorf("node outside a class block: %q", line)
			}
			var n utils.JSONNode
			if err := json.Unmarshal([]byte(line), &n); err != nil {
				return nil, fmt.Errorf("node: %w", err)
			}
			nodes = append(nodes, n)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return trees, nil
}

// buildTree links nodes by Leftid/Rightid starting from the first node. boo
// numbers nodes from 1 per tree and uses 0 for a missing child.
func buildTree(nodes []utils.JSONNode, scale float64) (*tree.Tree, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no nodes")
	}
	byID := make(map[uint]*utils.JSONNode, len(nodes))
	for i := range nodes {
		byID[nodes[i].Id] = &nodes[i]
	}
	t := &tree.Tree{}
	var visit func(id uint) (int, error)
	visit = func(id uint) (int, error) {
		n, ok := byID[id]
		if !ok {
			return 0, fmt.Errorf("missing or repeated node %d", id)
		}
		delete(byID, id)
		idx := t.AddNode(n.Value*scale, float64(n.Nsamples))
		if n.Leaf {
			return idx, nil
		}
		if n.Leftid == 0 || n.Rightid == 0 {
			return 0, fmt.Errorf("split node %d lacks a child", id)
		}
		l, err := visit(n.Leftid)
		if err != nil {
			return 0, err
		}
		r, err := visit(n.Rightid)
		if err != nil {
			return 0, err
		}
		t.SetSplit(idx, n.SplitFeatureIndex, n.Threshold, l, r)
		return idx, nil
	}
	if _, err := visit(nodes[0].Id); err != nil {
		return nil, err
	}
	if len(byID) > 0 {
		return nil, fmt.Errorf("%d unreachable nodes", len(byID))
	}
	return t, nil
}
