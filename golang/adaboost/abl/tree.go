package abl

import (
	"fmt"
	"strings"

	"github.com/fakeProgrammer0/ML-lab/golang/mlkit"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"gonum.org/v1/gonum/mat"
)

const treeKind = "tree"

//TreeNode is a node of a tree. Tree is stored in an array. LeftIndex and RightIndex are equal to -1
//when the current node is a leaf otherwise they contain array indices of children.
//A leaf node contains LeafIndex that is an index of the LeafNodes array.
type TreeNode struct {
	TreeNodeId            int
	FeatureNumber         int
	Threshold             float64
	LeftIndex, RightIndex int // -1, -1 if it is a leaf
	LeafIndex             int // -1 if it is a non-leaf tree node
	NumberOfObjects       int
	Impurity              float64
}

//GraphDescription returns the description of a tree node for tree rendering as a graph
func (node TreeNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("#", node.NumberOfObjects))
	sb.WriteString(fmt.Sprintln("id: ", node.TreeNodeId))
	sb.WriteString(fmt.Sprintf("gini: %.4g\n", node.Impurity))
	sb.WriteString(fmt.Sprintf("f_%d < %6.5f", node.FeatureNumber, node.Threshold))
	return sb.String()
}

func NewTreeNode() TreeNode {
	return TreeNode{0, -1, 0, -1, -1, -1, 0, 0}
}

//IsLeaf returns whether this node is a LeafNode.
func (node TreeNode) IsLeaf() bool {
	return node.LeafIndex != -1
}

//LeafNode stores the label predicted in a leaf and the weight of samples that reached it.
type LeafNode struct {
	LeafNodeId      int
	Label           float64
	PositiveWeight  float64
	NegativeWeight  float64
	NumberOfObjects int
}

//GraphDescription returns the description of a leaf node for tree rendering as a graph
func (node LeafNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("id: ", node.LeafNodeId))
	sb.WriteString(fmt.Sprintf("%+.0f\n", node.Label))
	sb.WriteString(fmt.Sprintf("w+ %.4g  w- %.4g\n", node.PositiveWeight, node.NegativeWeight))
	sb.WriteString(fmt.Sprintln("#", node.NumberOfObjects))
	return sb.String()
}

//DecisionTree is a weighted CART classifier over labels {-1, +1} splitting by Gini impurity.
type DecisionTree struct {
	LearnerParams
	TreeNodes []TreeNode
	LeafNodes []LeafNode
}

//NewDecisionTree creates an unfitted tree. The default depth is 2.
func NewDecisionTree(opts ...Option) *DecisionTree {
	return &DecisionTree{LearnerParams: newLearnerParams(opts)}
}

//Kind names the tree in saved models.
func (tree *DecisionTree) Kind() string { return treeKind }

//Clone returns an unfitted tree with the same hyperparameters.
func (tree *DecisionTree) Clone() WeakClassifier {
	return &DecisionTree{LearnerParams: tree.LearnerParams}
}

//Fit grows the tree on a weighted training set. Nil weights mean uniform weights.
func (tree *DecisionTree) Fit(samples *mat.Dense, labels, weights *mat.VecDense) error {
	h, _, err := validatedDimensions(samples, labels, weights)
	if err != nil {
		return fmt.Errorf("decision tree: %w", err)
	}
	if tree.MaxDepth < 1 {
		return fmt.Errorf("decision tree: max depth must be positive, got %d", tree.MaxDepth)
	}

	view := newTrainingView(samples, labels, weightsOrUniform(weights, h))
	indices := make([]int, h)
	for i := range indices {
		indices[i] = i
	}

	tree.TreeNodes = make([]TreeNode, 0)
	tree.LeafNodes = make([]LeafNode, 0)
	tree.BuildTree(view, indices, 0)
	return nil
}

//BuildTree recurrently builds a tree node over the rows listed in indices and returns its index.
func (tree *DecisionTree) BuildTree(view trainingView, indices []int, currentDepth int) int {
	pos, neg := view.labelWeights(indices)
	minLeaf := tree.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}

	pure := pos == 0 || neg == 0
	if !pure && currentDepth < tree.MaxDepth && len(indices) >= 2*minLeaf {
		if bestSplit := TheBestSplit(view, indices, giniCriterion, minLeaf, tree.ThreadsNum); bestSplit != nil {
			treeNodeId := len(tree.TreeNodes)
			currentTreeNode := NewTreeNode()
			currentTreeNode.TreeNodeId = treeNodeId
			currentTreeNode.FeatureNumber = bestSplit.featureIndex
			currentTreeNode.Threshold = bestSplit.threshold
			currentTreeNode.NumberOfObjects = len(indices)
			currentTreeNode.Impurity = weightedGini(pos, neg)
			tree.TreeNodes = append(tree.TreeNodes, currentTreeNode)

			left, right := view.partition(indices, *bestSplit)
			leftNodeId := tree.BuildTree(view, left, currentDepth+1)
			tree.TreeNodes[treeNodeId].LeftIndex = leftNodeId
			rightNodeId := tree.BuildTree(view, right, currentDepth+1)
			tree.TreeNodes[treeNodeId].RightIndex = rightNodeId

			return treeNodeId
		}
	}

	treeNodeId := len(tree.TreeNodes)
	currentTreeNode := NewTreeNode()
	currentTreeNode.TreeNodeId = treeNodeId
	currentTreeNode.NumberOfObjects = len(indices)
	currentTreeNode.Impurity = weightedGini(pos, neg)

	leafNodeId := len(tree.LeafNodes)
	currentTreeNode.LeafIndex = leafNodeId
	tree.TreeNodes = append(tree.TreeNodes, currentTreeNode)
	tree.LeafNodes = append(tree.LeafNodes, LeafNode{
		LeafNodeId:      leafNodeId,
		Label:           majorityLabel(pos, neg),
		PositiveWeight:  pos,
		NegativeWeight:  neg,
		NumberOfObjects: len(indices),
	})
	return treeNodeId
}

//Predict labels every row of samples. An unfitted tree predicts +1.
func (tree *DecisionTree) Predict(samples *mat.Dense) *mat.VecDense {
	h := mlkit.Height(samples)
	prediction := mlkit.NewVector(h)
	for p := 0; p < h; p++ {
		prediction.SetVec(p, tree.predictRow(samples, p))
	}
	return prediction
}

func (tree *DecisionTree) predictRow(samples *mat.Dense, p int) float64 {
	if len(tree.TreeNodes) == 0 {
		return 1
	}
	ind := 0
	for !tree.TreeNodes[ind].IsLeaf() {
		if samples.At(p, tree.TreeNodes[ind].FeatureNumber) < tree.TreeNodes[ind].Threshold {
			ind = tree.TreeNodes[ind].LeftIndex
		} else {
			ind = tree.TreeNodes[ind].RightIndex
		}
	}
	return tree.LeafNodes[tree.TreeNodes[ind].LeafIndex].Label
}

//Depth returns the number of splits on the longest path from the root.
func (tree *DecisionTree) Depth() int {
	if len(tree.TreeNodes) == 0 {
		return 0
	}
	var depthOf func(ind int) int
	depthOf = func(ind int) int {
		node := tree.TreeNodes[ind]
		if node.IsLeaf() {
			return 0
		}
		left, right := depthOf(node.LeftIndex), depthOf(node.RightIndex)
		if left > right {
			return left + 1
		}
		return right + 1
	}
	return depthOf(0)
}

//GetLeafDescription returns the description of a leaf node
func (tree *DecisionTree) GetLeafDescription(ind int) string {
	return tree.LeafNodes[tree.TreeNodes[ind].LeafIndex].GraphDescription()
}

//GetNodeDescription returns the description of a split node
func (tree *DecisionTree) GetNodeDescription(ind int) string {
	return tree.TreeNodes[ind].GraphDescription()
}

func recurrentDraw(g *cgraph.Graph, tree *DecisionTree, nodeNumber int, parentNode *cgraph.Node) error {
	currentNode, err := g.CreateNode(fmt.Sprint(tree.TreeNodes[nodeNumber].TreeNodeId))
	if err != nil {
		return err
	}

	if parentNode != nil {
		if _, err = g.CreateEdge("", parentNode, currentNode); err != nil {
			return err
		}
	}

	if tree.TreeNodes[nodeNumber].IsLeaf() {
		currentNode.Set("label", tree.GetLeafDescription(nodeNumber))
		currentNode.Set("shape", "box")
		return nil
	}

	currentNode.Set("label", tree.GetNodeDescription(nodeNumber))
	if err = recurrentDraw(g, tree, tree.TreeNodes[nodeNumber].LeftIndex, currentNode); err != nil {
		return err
	}
	return recurrentDraw(g, tree, tree.TreeNodes[nodeNumber].RightIndex, currentNode)
}

//DrawGraph builds a graphviz representation of a fitted tree.
func (tree *DecisionTree) DrawGraph() (*graphviz.Graphviz, *cgraph.Graph, error) {
	if len(tree.TreeNodes) == 0 {
		return nil, nil, fmt.Errorf("decision tree is not fitted")
	}
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	if err != nil {
		closeGraph(graphViz, nil)
		return nil, nil, err
	}

	if err = recurrentDraw(graph, tree, 0, nil); err != nil {
		closeGraph(graphViz, graph)
		return nil, nil, err
	}

	return graphViz, graph, nil
}

//fittedCopy returns an independent copy of the fitted tree.
func (tree *DecisionTree) fittedCopy() WeakClassifier {
	return &DecisionTree{
		LearnerParams: tree.LearnerParams,
		TreeNodes:     append([]TreeNode(nil), tree.TreeNodes...),
		LeafNodes:     append([]LeafNode(nil), tree.LeafNodes...),
	}
}

//validate checks a decoded tree. Children are stored after their parent,
//so every path from the root ends in a leaf.
func (tree *DecisionTree) validate(nFeatures int) error {
	nodes, leaves := len(tree.TreeNodes), len(tree.LeafNodes)
	for ind, node := range tree.TreeNodes {
		if node.IsLeaf() {
			if node.LeafIndex < 0 || node.LeafIndex >= leaves {
				return fmt.Errorf("node %d: leaf index %d is outside of [0, %d)", ind, node.LeafIndex, leaves)
			}
			if label := tree.LeafNodes[node.LeafIndex].Label; !mlkit.IsBinaryLabel(label) {
				return fmt.Errorf("node %d: leaf label %v", ind, label)
			}
			continue
		}
		if node.FeatureNumber < 0 || node.FeatureNumber >= nFeatures {
			return fmt.Errorf("node %d: feature %d is outside of [0, %d)", ind, node.FeatureNumber, nFeatures)
		}
		for _, child := range []int{node.LeftIndex, node.RightIndex} {
			if child <= ind || child >= nodes {
				return fmt.Errorf("node %d: child index %d is outside of (%d, %d)", ind, child, ind, nodes)
			}
		}
	}
	return nil
}
