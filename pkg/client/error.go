//
//  Copyright 2023 PayPal Inc.
//
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//

package client

import (
	"quadwire/internal/cli"
	"quadwire/pkg/errors"
)

var (
	ErrBusy            error
	ErrNoConnection    error
	ErrResponseTimeout error

	ErrPayloadTooLarge error
	ErrInternal        error
	ErrOpNotSupported  error
	ErrClosed          error
)

// errorMapping folds the engine's error numbers into the package's error
// surface.
var errorMapping map[uint32]error

func init() {
	ErrBusy = &cli.RetryableError{"server busy"}
	ErrNoConnection = &cli.RetryableError{"no connection"}
	ErrResponseTimeout = &cli.RetryableError{"response timeout"}

	ErrPayloadTooLarge = &cli.Error{"payload too large"}
	ErrInternal = &cli.Error{"internal error"}
	ErrOpNotSupported = &cli.Error{"op not supported"}
	ErrClosed = &cli.Error{"client closed"}

	errorMapping = map[uint32]error{
		errors.KErrNoError:         nil,
		errors.KErrBusy:            ErrBusy,
		errors.KErrNoConnection:    ErrNoConnection,
		errors.KErrConnectTimeout:  ErrNoConnection,
		errors.KErrResponseTimeout: ErrResponseTimeout,
		errors.KErrOpNotSupported:  ErrOpNotSupported,
	}
}

// mapError translates engine sentinels; IO errors pass through, they
// already carry IRetryable.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*errors.Error); ok {
		if mapped, found := errorMapping[e.ErrNo()]; found {
			return mapped
		}
		return ErrInternal
	}
	return err
}
