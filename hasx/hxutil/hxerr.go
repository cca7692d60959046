/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package hxutil

import (
	"fmt"
)

// Indicates an operation was rejected because another one is still in
// progress on the same connection.
type BusyError struct {
	Text string
}

func NewBusyError(text string) *BusyError {
	return &BusyError{text}
}

func FmtBusyError(format string, args ...interface{}) *BusyError {
	return NewBusyError(fmt.Sprintf(format, args...))
}

func (e *BusyError) Error() string {
	return e.Text
}

func IsBusy(err error) bool {
	_, ok := err.(*BusyError)
	return ok
}

// Indicates an operation that requires an established connection was
// attempted on a disconnected peer.
type NotConnectedError struct {
	Text string
}

func NewNotConnectedError(text string) *NotConnectedError {
	return &NotConnectedError{text}
}

func (e *NotConnectedError) Error() string {
	return e.Text
}

func IsNotConnected(err error) bool {
	_, ok := err.(*NotConnectedError)
	return ok
}

// Indicates an attempt to transition to the already-current state, e.g.
// double registration.
type AlreadyError struct {
	Text string
}

func NewAlreadyError(text string) *AlreadyError {
	return &AlreadyError{text}
}

func (e *AlreadyError) Error() string {
	return e.Text
}

func IsAlready(err error) bool {
	if err == nil {
		return false
	}

	_, ok := err.(*AlreadyError)
	return ok
}

type NotSupportedError struct {
	Text string
}

func NewNotSupportedError(text string) *NotSupportedError {
	return &NotSupportedError{text}
}

func (e *NotSupportedError) Error() string {
	return e.Text
}

func IsNotSupported(err error) bool {
	_, ok := err.(*NotSupportedError)
	return ok
}

type NotFoundError struct {
	Text string
}

func NewNotFoundError(text string) *NotFoundError {
	return &NotFoundError{text}
}

func FmtNotFoundError(format string, args ...interface{}) *NotFoundError {
	return NewNotFoundError(fmt.Sprintf(format, args...))
}

func (e *NotFoundError) Error() string {
	return e.Text
}

func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// Indicates a request that is structurally valid but violates an argument
// constraint (e.g. a preset name outside the allowed length range).
type InvalidArgError struct {
	Text string
}

func NewInvalidArgError(text string) *InvalidArgError {
	return &InvalidArgError{text}
}

func FmtInvalidArgError(format string, args ...interface{}) *InvalidArgError {
	return NewInvalidArgError(fmt.Sprintf(format, args...))
}

func (e *InvalidArgError) Error() string {
	return e.Text
}

func IsInvalidArg(err error) bool {
	_, ok := err.(*InvalidArgError)
	return ok
}

// Indicates a write to a preset name that does not have the writable
// property set.
type NotAllowedError struct {
	Text string
}

func NewNotAllowedError(text string) *NotAllowedError {
	return &NotAllowedError{text}
}

func (e *NotAllowedError) Error() string {
	return e.Text
}

func IsNotAllowed(err error) bool {
	_, ok := err.(*NotAllowedError)
	return ok
}
