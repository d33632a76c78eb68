package domain

// Phase is one of the fixed discussion stages.
type Phase string

const (
	PhaseBrainstorm     Phase = "Brainstorm"
	PhaseCriticalReview Phase = "CriticalReview"
	PhaseSelfVerify     Phase = "SelfVerify"
	PhaseVote           Phase = "Vote"
)

// phaseInstructions maps each phase to the instruction embedded in
// alter prompts.
var phaseInstructions = map[Phase]string{
	PhaseBrainstorm:     "Generate creative ideas and initial approaches. Think outside the box and propose multiple solutions.",
	PhaseCriticalReview: "Critically analyze the ideas presented. Point out potential issues, risks, and improvements.",
	PhaseSelfVerify:     "Verify the feasibility and correctness of the proposed solutions. Check for consistency.",
	PhaseVote:           "Provide your final recommendation with clear reasoning. Vote for the best approach.",
}

// genericInstruction is used for any phase outside the fixed enumeration.
const genericInstruction = "Contribute your expertise to the discussion."

// Instruction returns the prompt instruction for p.
func (p Phase) Instruction() string {
	if instr, ok := phaseInstructions[p]; ok {
		return instr
	}
	return genericInstruction
}
