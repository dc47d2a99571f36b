package filterspec

import (
	"fmt"
	"regexp"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
)

const (
	setupDirectiveTokenConstant          = "--setup"
	pruneEmptyDirectiveTokenConstant     = "--prune-empty"
	tagNameFilterDirectiveTokenConstant  = "--tag-name-filter"
	phaseFilterTokenPatternConstant      = `^--([a-z][a-z0-9-]*)-filter$`
	emptySpecMessageConstant             = "filter spec is empty"
	tokenizeErrorTemplateConstant        = "unable to tokenize filter spec: %w"
	missingArgumentTemplateConstant      = "directive %s is missing its argument"
	tagNameFilterRejectedMessageConstant = "--tag-name-filter is reserved: tag naming is controlled by the synchronizer"
	unknownTokenTemplateConstant         = "unrecognized filter directive %q"
)

var phaseFilterTokenExpression = regexp.MustCompile(phaseFilterTokenPatternConstant)

// Directive is one validated entry of a rewrite-filter spec.
type Directive struct {
	Token       string
	Argument    string
	HasArgument bool
}

// Arguments renders the directive as command-line arguments for the rewrite engine.
func (directive Directive) Arguments() []string {
	if directive.HasArgument {
		return []string{directive.Token, directive.Argument}
	}
	return []string{directive.Token}
}

// Spec is an ordered, validated list of rewrite-filter directives.
type Spec struct {
	Directives []Directive
}

// EngineArguments flattens the spec into rewrite-engine command-line arguments.
func (spec Spec) EngineArguments() []string {
	flattenedArguments := make([]string, 0, len(spec.Directives)*2)
	for _, directive := range spec.Directives {
		flattenedArguments = append(flattenedArguments, directive.Arguments()...)
	}
	return flattenedArguments
}

// ValidationError reports a rejected filter spec.
type ValidationError struct {
	Message string
}

// Error describes the validation failure.
func (validationError ValidationError) Error() string {
	return validationError.Message
}

// ParseInline tokenizes a shell-quoted filter spec string and validates it.
func ParseInline(rawSpec string) (Spec, error) {
	specTokens, tokenizeError := shellquote.Split(rawSpec)
	if tokenizeError != nil {
		return Spec{}, ValidationError{Message: fmt.Errorf(tokenizeErrorTemplateConstant, tokenizeError).Error()}
	}
	return Validate(specTokens)
}

// Validate checks an ordered token list against the accepted directive shapes.
//
// Accepted shapes are "--setup <cmd>", "--<phase>-filter <cmd>", and
// "--prune-empty". Everything else is rejected, including any form of
// "--tag-name-filter".
func Validate(specTokens []string) (Spec, error) {
	meaningfulTokens := make([]string, 0, len(specTokens))
	for _, specToken := range specTokens {
		if len(strings.TrimSpace(specToken)) > 0 {
			meaningfulTokens = append(meaningfulTokens, specToken)
		}
	}

	if len(meaningfulTokens) == 0 {
		return Spec{}, ValidationError{Message: emptySpecMessageConstant}
	}

	validatedDirectives := make([]Directive, 0, len(meaningfulTokens))
	for tokenIndex := 0; tokenIndex < len(meaningfulTokens); tokenIndex++ {
		currentToken := meaningfulTokens[tokenIndex]

		switch {
		case currentToken == tagNameFilterDirectiveTokenConstant:
			return Spec{}, ValidationError{Message: tagNameFilterRejectedMessageConstant}

		case currentToken == pruneEmptyDirectiveTokenConstant:
			validatedDirectives = append(validatedDirectives, Directive{Token: currentToken})

		case currentToken == setupDirectiveTokenConstant || phaseFilterTokenExpression.MatchString(currentToken):
			if tokenIndex+1 >= len(meaningfulTokens) {
				return Spec{}, ValidationError{Message: fmt.Sprintf(missingArgumentTemplateConstant, currentToken)}
			}
			tokenIndex++
			validatedDirectives = append(validatedDirectives, Directive{
				Token:       currentToken,
				Argument:    meaningfulTokens[tokenIndex],
				HasArgument: true,
			})

		default:
			return Spec{}, ValidationError{Message: fmt.Sprintf(unknownTokenTemplateConstant, currentToken)}
		}
	}

	return Spec{Directives: validatedDirectives}, nil
}
