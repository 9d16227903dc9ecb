/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package pretty

import (
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/patrickmn/go-cache"

	"github.com/chubbymaggie/meister/pkg/utils/functional"
)

// ChangeMonitor suppresses repeated logging of values that rarely change,
// such as the cluster resource budget between ticks. Recorded values expire
// so that a long-running process still periodically re-logs its state.
type ChangeMonitor struct {
	lastSeen *cache.Cache
}

type Options struct {
	VisibilityTimeout time.Duration
}

func WithVisibilityTimeout(d time.Duration) functional.Option[Options] {
	return func(o Options) Options {
		o.VisibilityTimeout = d
		return o
	}
}

func NewChangeMonitor(opts ...functional.Option[Options]) *ChangeMonitor {
	options := functional.ResolveOptions(opts...)
	if options.VisibilityTimeout == 0 {
		options.VisibilityTimeout = time.Hour
	}
	return &ChangeMonitor{
		lastSeen: cache.New(options.VisibilityTimeout, options.VisibilityTimeout/2),
	}
}

// HasChanged reports whether the hash of value differs from the last value
// recorded under key, recording the new hash when it does.
func (c *ChangeMonitor) HasChanged(key string, value any) bool {
	hv, _ := hashstructure.Hash(value, hashstructure.FormatV2, &hashstructure.HashOptions{SlicesAsSets: true})
	existing, ok := c.lastSeen.Get(key)
	if ok && existing.(uint64) == hv {
		return false
	}
	c.lastSeen.SetDefault(key, hv)
	return true
}
