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

package service

import (
	"github.com/motorbench/BenchWorker/pkg/metrics"
)

const (
	subSystem = "service"
)

var (
	// Total number of changed configurations received
	configurationChangesTotal = metrics.MustRegisterCounter(subSystem,
		"configuration_changes_total",
		"Total number of changed configurations received")
	// Total number of configuration load failures
	configurationLoadErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"configuration_load_errors_total",
		"Total number of configuration load failures")
	// ID of current worker
	currentWorkerIDGauge = metrics.MustRegisterGauge(subSystem,
		"worker_id",
		"ID of current worker")
	// Total number of workers, ever created
	workerCountTotal = metrics.MustRegisterCounter(subSystem,
		"worker_count_total",
		"Total number of workers created")
	// Total number of requests rejected because no worker was running
	requestServiceUnavailableTotal = metrics.MustRegisterCounter(subSystem,
		"request_service_unavailable_total",
		"Total number of requests rejected because no worker was running")
	// Total number of SetPowerRequest calls
	setPowerRequestTotal = metrics.MustRegisterCounter(subSystem,
		"service_api_set_power_request_total",
		"Total number of SetPowerRequest calls")
	// Total number of SetOutputRequest calls per output address
	setOutputRequestTotal = metrics.MustRegisterCounterVec(subSystem,
		"service_api_set_output_request_total",
		"Total number of SetOutputRequest calls per address",
		"address")
	// Total number of SetMotorRequest calls per motor address
	setMotorRequestTotal = metrics.MustRegisterCounterVec(subSystem,
		"service_api_set_motor_request_total",
		"Total number of SetMotorRequest calls per address",
		"address")
)
