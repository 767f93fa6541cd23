package hierarchy

import (
	"math"
	"sort"
	"strings"

	"github.com/danielolaszy/prism/pkg/models"
)

// Tree is the aggregated hierarchy for a set of issues.
type Tree struct {
	// Epics are sorted by key, as are their stories
	Epics []models.EpicWithStories `json:"epics"`

	// Orphans are stories whose epic is not part of the input
	Orphans []models.StoryNode `json:"orphans"`
}

// StatsFor computes the rollup for a set of test cases.
func StatsFor(cases []models.TestCase) models.Stats {
	var s models.Stats
	for _, tc := range cases {
		switch Classify(tc.Status) {
		case Passing:
			s.Passing++
		case Partial:
			s.Partial++
		case Breaking:
			s.Breaking++
		default:
			s.Pending++
		}
	}
	s.Total = len(cases)
	s.PassRate = passRate(s.Passing, s.Total)
	return s
}

// Add returns the sum of a and b with the pass rate recomputed.
func Add(a, b models.Stats) models.Stats {
	sum := models.Stats{
		Passing:  a.Passing + b.Passing,
		Partial:  a.Partial + b.Partial,
		Breaking: a.Breaking + b.Breaking,
		Pending:  a.Pending + b.Pending,
		Total:    a.Total + b.Total,
	}
	sum.PassRate = passRate(sum.Passing, sum.Total)
	return sum
}

func passRate(passing, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(passing) * 100 / float64(total)))
}

// TestCasesByStory groups the normalized test case issues by story key.
func TestCasesByStory(issues []models.Issue) map[string][]models.TestCase {
	byStory := make(map[string][]models.TestCase)
	for _, issue := range issues {
		if issue.Type != models.TypeTestCase || issue.ParentKey == "" {
			continue
		}
		byStory[issue.ParentKey] = append(byStory[issue.ParentKey], models.TestCase{
			Key:       issue.Key,
			Summary:   issue.Summary,
			Status:    issue.Status,
			ParentKey: issue.ParentKey,
		})
	}
	return byStory
}

// Build aggregates issues into a tree. testCasesByStory supplies each story's
// test cases. Neither input is modified and the result depends only on them.
func Build(issues []models.Issue, testCasesByStory map[string][]models.TestCase) Tree {
	var epics []models.Issue
	epicKeys := make(map[string]bool)
	storiesByParent := make(map[string][]models.StoryNode)

	for _, issue := range issues {
		switch issue.Type {
		case models.TypeEpic:
			epics = append(epics, issue)
			epicKeys[issue.Key] = true
		case models.TypeStory:
			cases := append([]models.TestCase{}, testCasesByStory[issue.Key]...)
			sortTestCases(cases)
			storiesByParent[issue.ParentKey] = append(storiesByParent[issue.ParentKey], models.StoryNode{
				Story:     issue,
				TestCases: cases,
				Stats:     StatsFor(cases),
			})
		}
	}

	sort.Slice(epics, func(i, j int) bool { return keyLess(epics[i].Key, epics[j].Key) })

	tree := Tree{
		Epics:   make([]models.EpicWithStories, 0, len(epics)),
		Orphans: []models.StoryNode{},
	}
	for _, epic := range epics {
		stories := storiesByParent[epic.Key]
		sortStories(stories)

		node := models.EpicWithStories{Epic: epic, Stories: stories}
		if node.Stories == nil {
			node.Stories = []models.StoryNode{}
		}
		for _, s := range node.Stories {
			node.Stats = Add(node.Stats, s.Stats)
		}
		tree.Epics = append(tree.Epics, node)
	}

	for parent, stories := range storiesByParent {
		if !epicKeys[parent] {
			tree.Orphans = append(tree.Orphans, stories...)
		}
	}
	sortStories(tree.Orphans)

	return tree
}

// Story finds a story anywhere in the tree, orphans included.
func (t Tree) Story(key string) (models.StoryNode, bool) {
	for _, e := range t.Epics {
		for _, s := range e.Stories {
			if s.Story.Key == key {
				return s, true
			}
		}
	}
	for _, s := range t.Orphans {
		if s.Story.Key == key {
			return s, true
		}
	}
	return models.StoryNode{}, false
}

// ProjectStats sums the stats of every epic with at least one story in the
// project, matched on the story key prefix.
func ProjectStats(t Tree, projectKey string) models.Stats {
	prefix := projectKey + "-"
	var total models.Stats
	for _, e := range t.Epics {
		for _, s := range e.Stories {
			if strings.HasPrefix(s.Story.Key, prefix) {
				total = Add(total, e.Stats)
				break
			}
		}
	}
	return total
}

// ForProject returns the part of the tree that belongs to projectKey.
func ForProject(t Tree, projectKey string) Tree {
	out := Tree{
		Epics:   []models.EpicWithStories{},
		Orphans: []models.StoryNode{},
	}
	for _, e := range t.Epics {
		if e.Epic.ProjectKey == projectKey {
			out.Epics = append(out.Epics, e)
		}
	}
	for _, s := range t.Orphans {
		if s.Story.ProjectKey == projectKey {
			out.Orphans = append(out.Orphans, s)
		}
	}
	return out
}

func sortStories(stories []models.StoryNode) {
	sort.Slice(stories, func(i, j int) bool { return keyLess(stories[i].Story.Key, stories[j].Story.Key) })
}

func sortTestCases(cases []models.TestCase) {
	sort.Slice(cases, func(i, j int) bool { return keyLess(cases[i].Key, cases[j].Key) })
}

// keyLess orders issue keys by project, then numerically ("P-2" < "P-10").
func keyLess(a, b string) bool {
	pa, na := splitKey(a)
	pb, nb := splitKey(b)
	if pa != pb {
		return pa < pb
	}
	if na != nb {
		return na < nb
	}
	return a < b
}

func splitKey(key string) (string, int) {
	i := strings.LastIndex(key, "-")
	if i < 0 {
		return key, -1
	}
	n := 0
	for _, r := range key[i+1:] {
		if r < '0' || r > '9' {
			return key, -1
		}
		n = n*10 + int(r-'0')
	}
	return key[:i], n
}
