package types

// NodeKind tags the variant held by a Node.
type NodeKind int

const (
	NodeTask NodeKind = iota + 1
	NodeSubTask
	NodeSwitch
	NodeOption
)

func (k NodeKind) String() string {
	switch k {
	case NodeTask:
		return "task"
	case NodeSubTask:
		return "sub_task"
	case NodeSwitch:
		return "switch"
	case NodeOption:
		return "option"
	default:
		return "unknown"
	}
}

// Node is a read view of one element of a job's task tree. Exactly one of
// the pointer fields is set, matching Kind. Pointers address the element
// inside the owning Job, so a visitor may update execution state in place.
type Node struct {
	Kind  NodeKind
	Depth int

	Task    *JobTask
	SubTask *SubTask
	Switch  *SwitchTask
	Option  *Job
}

// WalkFunc is called for every node. Returning false skips the node's
// children; the walk continues with its siblings.
type WalkFunc func(n Node) bool

// Walk visits the task tree depth-first in document order: each task, then
// its sub-tasks, then its switch branches (and their tasks), then its
// alternative job options (and their task trees, recursively).
func (j *Job) Walk(fn WalkFunc) {
	walkTasks(j.JobTasks, 0, fn)
}

func walkTasks(tasks []JobTask, depth int, fn WalkFunc) {
	for i := range tasks {
		t := &tasks[i]
		if !fn(Node{Kind: NodeTask, Depth: depth, Task: t}) {
			continue
		}
		for k := range t.SubTasks {
			fn(Node{Kind: NodeSubTask, Depth: depth + 1, SubTask: &t.SubTasks[k]})
		}
		for k := range t.Switch {
			sw := &t.Switch[k]
			if !fn(Node{Kind: NodeSwitch, Depth: depth + 1, Switch: sw}) {
				continue
			}
			for m := range sw.Tasks {
				fn(Node{Kind: NodeSubTask, Depth: depth + 2, SubTask: &sw.Tasks[m]})
			}
		}
		for k := range t.Options {
			opt := &t.Options[k]
			if !fn(Node{Kind: NodeOption, Depth: depth + 1, Option: opt}) {
				continue
			}
			walkTasks(opt.JobTasks, depth+2, fn)
		}
	}
}

// NodeCount returns the number of nodes Walk visits.
func (j *Job) NodeCount() int {
	n := 0
	j.Walk(func(Node) bool {
		n++
		return true
	})
	return n
}
