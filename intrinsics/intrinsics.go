// Package intrinsics provides the CloudFormation intrinsic functions used by
// the site declarations.
//
// Core intrinsic types are re-exported from cloudformation-schema-go:
//
//	Ref{LogicalName: "SiteBucket"}     → {"Ref": "SiteBucket"}
//	Sub{String: "${SiteBucket.Arn}/*"} → {"Fn::Sub": "${SiteBucket.Arn}/*"}
//	Join{Delimiter: "", Values: ...}   → {"Fn::Join": ["", [...]]}
//
// Pseudo-parameters:
//
//	AWS_REGION, AWS_ACCOUNT_ID, AWS_PARTITION, etc.
package intrinsics

import (
	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

type (
	// Ref represents a CloudFormation Ref intrinsic function.
	Ref = intrinsics.Ref

	// GetAtt represents a CloudFormation Fn::GetAtt intrinsic function.
	GetAtt = intrinsics.GetAtt

	// Sub represents a CloudFormation Fn::Sub intrinsic function.
	Sub = intrinsics.Sub

	// Join represents a CloudFormation Fn::Join intrinsic function.
	Join = intrinsics.Join

	// Select represents a CloudFormation Fn::Select intrinsic function.
	Select = intrinsics.Select

	// Split represents a CloudFormation Fn::Split intrinsic function.
	Split = intrinsics.Split

	// Tag represents a CloudFormation resource tag.
	Tag = intrinsics.Tag
)

// List creates a typed slice from the given items.
// Avoids verbose slice type annotations in struct literals.
//
//	Origins: List(SiteOrigin),
func List[T any](items ...T) []T {
	return items
}

// Any creates a []any slice from the given items.
func Any(items ...any) []any {
	return items
}

// BoolPtr returns a pointer to b. Used for properties where an explicit
// false must be distinguished from "not set".
func BoolPtr(b bool) *bool {
	return &b
}

// IntPtr returns a pointer to the given int value.
func IntPtr(i int) *int {
	return &i
}
