// Copyright 2025 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package objects

import (
	"github.com/motorbench/BenchWorker/pkg/metrics"
)

const (
	subSystem = "objects"
)

var (
	// Number of created objects
	objectsCreatedTotal = metrics.MustRegisterGauge(subSystem,
		"objects_created_total",
		"Number of created objects")

	// Number of configured objects
	objectsConfiguredTotal = metrics.MustRegisterGauge(subSystem,
		"objects_configured_total",
		"Number of configured objects")

	// Binary output metrics
	binaryOutputRequestsTotal = metrics.MustRegisterCounterVec(subSystem,
		"binary_output_requests_total",
		"Number of binary output requests",
		"id")
	binaryOutputRequestGauge = metrics.MustRegisterGaugeVec(subSystem,
		"binary_output_request",
		"Requested value of binary output (0=OFF, 1=ON)",
		"id")

	// Binary sensor metrics
	binarySensorActualGauge = metrics.MustRegisterGaugeVec(subSystem,
		"binary_sensor_actual",
		"Actual value of binary sensor",
		"id")
	binarySensorChangesTotal = metrics.MustRegisterCounterVec(subSystem,
		"binary_sensor_changes_total",
		"Number of times, actual value of binary sensor has changed",
		"id")
	binarySensorReadErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"binary_sensor_read_errors_total",
		"Number of read errors of a binary sensor",
		"id")

	// Motor metrics
	motorRequestsTotal = metrics.MustRegisterCounterVec(subSystem,
		"motor_requests_total",
		"Number of motor duty requests",
		"id")
	motorRequestGauge = metrics.MustRegisterGaugeVec(subSystem,
		"motor_request",
		"Requested duty of motor (0..255)",
		"id")
	motorActualGauge = metrics.MustRegisterGaugeVec(subSystem,
		"motor_actual",
		"Actual duty of motor (0..255)",
		"id")

	// Motor ramp metrics
	motorRampCyclesStartedTotal = metrics.MustRegisterCounterVec(subSystem,
		"motor_ramp_cycles_started_total",
		"Number of started ramp cycles",
		"id")
	motorRampCyclesCompletedTotal = metrics.MustRegisterCounterVec(subSystem,
		"motor_ramp_cycles_completed_total",
		"Number of completed ramp cycles",
		"id")
	motorRampDutyGauge = metrics.MustRegisterGaugeVec(subSystem,
		"motor_ramp_duty",
		"Current duty of the motor ramp output (0..255)",
		"id")
	motorRampStateGauge = metrics.MustRegisterGaugeVec(subSystem,
		"motor_ramp_state",
		"Current ramp state (0=IDLE, 1=RAMPING_UP, 2=RAMPING_DOWN)",
		"id")
	motorRampTriggerReadErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"motor_ramp_trigger_read_errors_total",
		"Number of read errors of a ramp trigger input",
		"id")
	motorRampWriteErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"motor_ramp_write_errors_total",
		"Number of write errors of a ramp motor output",
		"id")
)
