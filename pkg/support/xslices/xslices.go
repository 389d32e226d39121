/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package xslices provides the handful of generic slice/map helpers the
// runtime needs to keep iteration order and transformations terse, trimmed
// down to what the ddptensor packages actually call.
package xslices

import (
	"cmp"
	"sort"
)

// Map applies fn to every element of in, returning a new slice of the results.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	if in == nil {
		return nil
	}
	out = make([]Out, len(in))
	for i, e := range in {
		out[i] = fn(e)
	}
	return
}

// Keys returns the keys of m in an unspecified (map iteration) order.
func Keys[K comparable, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// SortedKeys returns the keys of m sorted in ascending order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := Keys(m)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
