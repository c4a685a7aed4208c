package ml

import (
	"encoding/json"
	"sort"
)

// RandomForest combines its trees the way scikit-learn does when every
// reached leaf carries a class distribution: each tree's distribution is
// normalized, the forest averages them and the most probable label wins.
// Otherwise it takes a majority vote. Ties go to the smallest label.
type RandomForest struct {
	trees []*DecisionTree
}

// NewRandomForest combines already validated trees.
func NewRandomForest(trees ...*DecisionTree) (*RandomForest, error) {
	if len(trees) == 0 {
		return nil, &ClassificationError{Reason: "forest has no trees"}
	}
	return &RandomForest{trees: trees}, nil
}

func (rf *RandomForest) Predict(scaled ScaledVector) (PhaseLabel, error) {
	if len(rf.trees) == 0 {
		return 0, &ClassificationError{Reason: "model not loaded"}
	}
	leaves := make([]*TreeNode, len(rf.trees))
	soft := true
	for i, tree := range rf.trees {
		leaf, err := tree.leaf(scaled)
		if err != nil {
			return 0, err
		}
		leaves[i] = leaf
		soft = soft && leaf.ClassDistribution != nil
	}
	if soft {
		return averageProbabilities(leaves), nil
	}

	// Labels are small; a sorted slice avoids a map on the hot path.
	votes := make([]vote, 0, 4)
	for _, leaf := range leaves {
		votes = addVote(votes, PhaseLabel(leaf.ClassLabel))
	}
	best := votes[0]
	for _, v := range votes[1:] {
		if v.count > best.count {
			best = v
		}
	}
	return best.label, nil
}

func averageProbabilities(leaves []*TreeNode) PhaseLabel {
	width := 0
	for _, leaf := range leaves {
		width = max(width, len(leaf.ClassDistribution))
	}
	proba := make([]float64, width)
	for _, leaf := range leaves {
		var total float64
		for _, v := range leaf.ClassDistribution {
			total += v
		}
		for label, v := range leaf.ClassDistribution {
			proba[label] += v / total
		}
	}
	best := 0
	for label := 1; label < width; label++ {
		if proba[label] > proba[best] {
			best = label
		}
	}
	return PhaseLabel(best)
}

type vote struct {
	label PhaseLabel
	count int
}

func addVote(votes []vote, label PhaseLabel) []vote {
	i := sort.Search(len(votes), func(i int) bool { return votes[i].label >= label })
	if i < len(votes) && votes[i].label == label {
		votes[i].count++
		return votes
	}
	votes = append(votes, vote{})
	copy(votes[i+1:], votes[i:])
	votes[i] = vote{label: label, count: 1}
	return votes
}

func (rf *RandomForest) Load(path string) error {
	var raw []json.RawMessage
	if err := loadJSON(path, &raw); err != nil {
		return err
	}
	trees := make([]*DecisionTree, 0, len(raw))
	for _, payload := range raw {
		var nodes []TreeNode
		if err := json.Unmarshal(payload, &nodes); err != nil {
			return &ClassificationError{Reason: "decode tree: " + err.Error()}
		}
		tree, err := NewDecisionTree(nodes)
		if err != nil {
			return err
		}
		trees = append(trees, tree)
	}
	if len(trees) == 0 {
		return &ClassificationError{Reason: "forest has no trees"}
	}
	rf.trees = trees
	return nil
}
