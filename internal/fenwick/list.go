// Package fenwick provides a list data structure supporting prefix sums.
//
// A Fenwick tree, or binary indexed tree, is a space-efficient list
// data structure that can efficiently update elements and calculate
// prefix sums in a list of numbers. Both operations run in O(log n)
// time while using the same amount of memory as a plain slice.
//
// The list is generic over the element type so that it can hold
// digest weights of either integral or floating point kind.
package fenwick

// Number is the set of element types a List can hold.
type Number interface {
	~int | ~int32 | ~int64 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// List represents a list of numbers with support for efficient
// prefix sum computation. The zero value is an empty list.
type List[T Number] struct {
	// The tree slice stores range sums of an underlying array t.
	// To compute the prefix sum t[0] + t[1] + t[k-1], add elements
	// which correspond to each 1 bit in the binary expansion of k.
	tree []T
}

// New creates a new list with the given elements.
func New[T Number](n ...T) *List[T] {
	l := &List[T]{}
	l.Reset(n...)
	return l
}

// Reset replaces the content of the list with the given elements,
// reusing the underlying storage when possible.
func (l *List[T]) Reset(n ...T) {
	size := len(n)
	if cap(l.tree) < size {
		l.tree = make([]T, size)
	}
	l.tree = l.tree[:size]
	copy(l.tree, n)
	for i := range l.tree {
		if j := i | (i + 1); j < size {
			l.tree[j] += l.tree[i]
		}
	}
}

// Len returns the number of elements in the list.
func (l *List[T]) Len() int {
	return len(l.tree)
}

// Get returns the element at index i.
func (l *List[T]) Get(i int) T {
	sum := l.tree[i]
	j := i + 1
	j -= j & -j
	for i > j {
		sum -= l.tree[i-1]
		i -= i & -i
	}
	return sum
}

// Set sets the element at index i to n.
func (l *List[T]) Set(i int, n T) {
	l.Add(i, n-l.Get(i))
}

// Add adds n to the element at index i.
func (l *List[T]) Add(i int, n T) {
	for size := len(l.tree); i < size; i |= i + 1 {
		l.tree[i] += n
	}
}

// Sum returns the sum of the elements from index 0 to index i-1.
func (l *List[T]) Sum(i int) T {
	var sum T
	for i > 0 {
		sum += l.tree[i-1]
		i -= i & -i
	}
	return sum
}

// SumRange returns the sum of the elements from index i to index j-1.
func (l *List[T]) SumRange(i, j int) T {
	var sum T
	for j > i {
		sum += l.tree[j-1]
		j -= j & -j
	}
	for i > j {
		sum -= l.tree[i-1]
		i -= i & -i
	}
	return sum
}

// Append appends a new element to the end of the list.
func (l *List[T]) Append(n T) {
	i := len(l.tree)
	l.tree = append(l.tree, 0)
	l.tree[i] = n - l.Get(i)
}

// Search returns the smallest index i such that Sum(i+1) > x, that is
// the index of the element whose cumulative range covers x. It returns
// Len() when x is at or beyond the total. Elements must be non-negative.
func (l *List[T]) Search(x T) int {
	size := len(l.tree)
	pos := 0
	step := 1
	for step<<1 <= size {
		step <<= 1
	}
	for ; step > 0; step >>= 1 {
		if next := pos + step; next <= size && l.tree[next-1] <= x {
			pos = next
			x -= l.tree[next-1]
		}
	}
	return pos
}
