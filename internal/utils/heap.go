package utils

import (
	"container/heap"
)

// MinHeap 是一个通用的最小堆实现
// 通过比较函数确定元素顺序，不做内部加锁，由调用方保证同步
type MinHeap[T any] struct {
	items    []T
	lessFunc func(a, b T) bool
}

// NewMinHeap 创建一个新的最小堆
// lessFunc 是比较函数，当a应该排在b前面时返回true
func NewMinHeap[T any](lessFunc func(a, b T) bool) *MinHeap[T] {
	return &MinHeap[T]{
		items:    make([]T, 0),
		lessFunc: lessFunc,
	}
}

// NewMinHeapFrom 用已有元素建堆，时间复杂度O(n)
func NewMinHeapFrom[T any](items []T, lessFunc func(a, b T) bool) *MinHeap[T] {
	h := &MinHeap[T]{items: items, lessFunc: lessFunc}
	heap.Init((*heapAdapter[T])(h))
	return h
}

// Len 返回堆的长度
func (h *MinHeap[T]) Len() int {
	return len(h.items)
}

// Add 添加一个元素到堆中
func (h *MinHeap[T]) Add(item T) {
	heap.Push((*heapAdapter[T])(h), item)
}

// RemoveTop 移除并返回堆顶元素
func (h *MinHeap[T]) RemoveTop() (T, bool) {
	if len(h.items) == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop((*heapAdapter[T])(h)).(T), true
}

// Peek 查看堆顶元素但不移除
func (h *MinHeap[T]) Peek() (T, bool) {
	if len(h.items) == 0 {
		var zero T
		return zero, false
	}
	return h.items[0], true
}

// heapAdapter 实现container/heap接口，避免把Push/Pop暴露在MinHeap上
type heapAdapter[T any] MinHeap[T]

func (a *heapAdapter[T]) Len() int           { return len(a.items) }
func (a *heapAdapter[T]) Less(i, j int) bool { return a.lessFunc(a.items[i], a.items[j]) }
func (a *heapAdapter[T]) Swap(i, j int)      { a.items[i], a.items[j] = a.items[j], a.items[i] }

func (a *heapAdapter[T]) Push(x any) {
	a.items = append(a.items, x.(T))
}

func (a *heapAdapter[T]) Pop() any {
	old := a.items
	n := len(old)
	x := old[n-1]
	var zero T
	old[n-1] = zero
	a.items = old[:n-1]
	return x
}
