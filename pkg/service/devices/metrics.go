//    Copyright 2025 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package devices

import (
	"github.com/motorbench/BenchWorker/pkg/metrics"
)

const (
	subSystem = "devices"
)

var (
	// Number of devices created from the current configuration
	devicesCreatedTotal = metrics.MustRegisterGauge(subSystem,
		"created_total",
		"Number of devices created from the current configuration")
	// Number of devices that configured without error
	devicesConfiguredTotal = metrics.MustRegisterGauge(subSystem,
		"configured_total",
		"Number of devices that configured without error")
)
