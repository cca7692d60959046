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

package gatt

import (
	"fmt"
	"testing"
)

func TestUUID16(t *testing.T) {
	if s := SvcHearingAccess.String(); s != "00001854-0000-1000-8000-00805f9b34fb" {
		t.Fatalf("bad service uuid: %s", s)
	}
	if s := ChrPresetControlPoint.String(); s != "00002bdb-0000-1000-8000-00805f9b34fb" {
		t.Fatalf("bad control point uuid: %s", s)
	}
}

func TestToAttError(t *testing.T) {
	if e := ToAttError(AttErrOutOfRange); e != AttErrOutOfRange {
		t.Fatalf("att error not passed through: %v", e)
	}
	if e := ToAttError(fmt.Errorf("plain")); e != AttErrUnlikely {
		t.Fatalf("foreign error: have %v, want %v", e, AttErrUnlikely)
	}
}
