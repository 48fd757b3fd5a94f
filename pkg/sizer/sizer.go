// Package sizer implements the instance-type sizer: mapping a
// (cpu millicores, memory MB) demand to the smallest published instance
// class that fits it in both dimensions.
package sizer

// Class names an instance class, size-ordered smallest first.
type Class string

const (
	Nano    Class = "nano"
	Micro   Class = "micro"
	Small   Class = "small"
	Medium  Class = "medium"
	Large   Class = "large"
	XLarge  Class = "xlarge"
	XXLarge Class = "2xlarge"
	None    Class = "none"
)

type entry struct {
	class  Class
	cpu    int
	memory int
}

// table is size-sorted; ties are broken by table order.
var table = []entry{
	{Nano, 500, 512},
	{Micro, 2000, 1024},
	{Small, 4000, 2048},
	{Medium, 4000, 4096},
	{Large, 4000, 8192},
	{XLarge, 4000, 16384},
	{XXLarge, 8000, 32768},
}

// Size returns the smallest class whose capacity is >= demand in both
// dimensions, or None if the demand exceeds every class.
func Size(cpuMillicores, memoryMB int) Class {
	for _, e := range table {
		if e.cpu >= cpuMillicores && e.memory >= memoryMB {
			return e.class
		}
	}
	return None
}

// Capacity returns the (cpu, memory) capacity of a class, used by the
// orchestrator to size a newly provisioned Instance's totals.
func Capacity(class Class) (cpuMillicores, memoryMB int, ok bool) {
	for _, e := range table {
		if e.class == class {
			return e.cpu, e.memory, true
		}
	}
	return 0, 0, false
}
